// Package styles turns model recommendations into the fixed 3x3 style grid.
package styles

import (
	"fmt"
	"strings"

	"github.com/raushankrgupta/hair-director/models"
)

// GridSize is the number of cells in the generated style grid.
const GridSize = 9

// Fallback is drawn from, in order, when the model returns fewer than GridSize styles.
var Fallback = []string{
	"Layered Bob",
	"Long Layers",
	"Textured Pixie",
	"Curtain Bangs",
	"Soft Waves",
	"Shag Cut",
	"Side-Swept Lob",
	"Sleek Straight",
	"Face-Framing Layers",
	"Wolf Cut",
	"Blunt Bob",
	"Beach Waves",
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NormalizeToNine returns exactly GridSize unique names: the given names in order
// (blank and duplicate entries dropped, extras truncated), then names from pool
// that are not already present. If pool runs dry, numbered placeholders fill the rest.
func NormalizeToNine(names, pool []string) []string {
	out := make([]string, 0, GridSize)
	seen := make(map[string]bool, GridSize)

	add := func(name string) {
		name = strings.TrimSpace(name)
		key := nameKey(name)
		if key == "" || seen[key] || len(out) == GridSize {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	for _, n := range names {
		add(n)
	}
	for _, n := range pool {
		add(n)
	}
	for i := 1; len(out) < GridSize; i++ {
		add(fmt.Sprintf("Style %d", i))
	}
	return out
}

// NormalizeRecommendations pads or truncates recs to exactly GridSize entries
// whose names match NormalizeToNine(names, Fallback). Padding entries get a
// generic reason, descending scores and sequential priorities.
func NormalizeRecommendations(recs []models.Recommendation) []models.Recommendation {
	byName := make(map[string]models.Recommendation, len(recs))
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		key := nameKey(r.Name)
		if key == "" {
			continue
		}
		if _, dup := byName[key]; !dup {
			byName[key] = r
		}
		names = append(names, r.Name)
	}

	grid := NormalizeToNine(names, Fallback)
	out := make([]models.Recommendation, 0, GridSize)
	for i, name := range grid {
		r, ok := byName[nameKey(name)]
		if !ok {
			r = models.Recommendation{
				Name:   name,
				Reason: "A versatile style that suits most face shapes.",
				Score:  60 - i,
			}
		}
		if r.ID == "" {
			r.ID = fmt.Sprintf("style-%d", i+1)
		}
		r.Name = name
		r.Score = clampScore(r.Score)
		r.Priority = i + 1
		out = append(out, r)
	}
	return out
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}
