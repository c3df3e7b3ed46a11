package styles

import (
	"fmt"
	"strings"
	"testing"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertUnique(t *testing.T, names []string) {
	t.Helper()
	seen := map[string]bool{}
	for _, n := range names {
		key := strings.ToLower(n)
		assert.False(t, seen[key], "duplicate name %q", n)
		seen[key] = true
	}
}

func TestNormalizeToNineAlwaysNine(t *testing.T) {
	for n := 0; n <= 14; n++ {
		var names []string
		for i := 0; i < n; i++ {
			names = append(names, fmt.Sprintf("Model Style %d", i))
		}
		got := NormalizeToNine(names, Fallback)
		require.Len(t, got, GridSize, "input of %d names", n)
		assertUnique(t, got)
		for i := 0; i < n && i < GridSize; i++ {
			assert.Equal(t, names[i], got[i])
		}
	}
}

func TestNormalizeToNinePadsWithoutDuplicates(t *testing.T) {
	names := []string{"Shag Cut", "layered bob", "Pixie", "Shag Cut", "  "}
	got := NormalizeToNine(names, Fallback)

	require.Len(t, got, GridSize)
	assert.Equal(t, []string{"Shag Cut", "layered bob", "Pixie"}, got[:3])
	assert.Equal(t, "Long Layers", got[3], "Layered Bob already present case-insensitively")
	assertUnique(t, got)
}

func TestNormalizeToNineExhaustedPool(t *testing.T) {
	got := NormalizeToNine([]string{"A"}, []string{"B", "a"})
	require.Len(t, got, GridSize)
	assert.Equal(t, []string{"A", "B", "Style 1"}, got[:3])
	assertUnique(t, got)
}

func TestNormalizeRecommendationsFive(t *testing.T) {
	var recs []models.Recommendation
	for i := 1; i <= 5; i++ {
		recs = append(recs, models.Recommendation{ID: fmt.Sprintf("r%d", i), Name: fmt.Sprintf("Upstream %d", i), Reason: "fits", Score: 90 + i*5, Priority: 6 - i})
	}

	got := NormalizeRecommendations(recs)
	require.Len(t, got, GridSize)
	for i := 0; i < 5; i++ {
		assert.Equal(t, recs[i].Name, got[i].Name)
		assert.Equal(t, recs[i].ID, got[i].ID)
		assert.Equal(t, i+1, got[i].Priority)
		assert.LessOrEqual(t, got[i].Score, 100)
	}
	assert.Equal(t, "Layered Bob", got[5].Name)
	assert.NotEmpty(t, got[5].ID)
	assert.NotEmpty(t, got[5].Reason)
}

func TestNormalizeRecommendationsTruncates(t *testing.T) {
	var recs []models.Recommendation
	for i := 0; i < 12; i++ {
		recs = append(recs, models.Recommendation{Name: fmt.Sprintf("S%d", i)})
	}
	got := NormalizeRecommendations(recs)
	require.Len(t, got, GridSize)
	assert.Equal(t, "S8", got[8].Name)
}
