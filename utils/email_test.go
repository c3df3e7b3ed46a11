package utils

import (
	"context"
	"testing"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"me@example.com", "first.last+tag@mail.example.co.jp", " padded@example.com "}
	for _, addr := range valid {
		assert.NoError(t, ValidateEmail(addr), addr)
	}

	invalid := []string{"", "me", "me@", "@example.com", "me@localhost", "Me <me@example.com>", "me@example.", "me@.com", "a b@example.com"}
	for _, addr := range invalid {
		assert.ErrorIs(t, ValidateEmail(addr), ErrInvalidEmail, addr)
	}
}

func TestSendResultsRejectsBeforeNetwork(t *testing.T) {
	// no API key: a network attempt would fail with a different error
	m := NewSendGridMailer("", "Hair Director", "no-reply@example.com")
	err := m.SendResults(context.Background(), "not-an-address", &models.AnalysisResult{})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRenderResultsEmailEscapesModelText(t *testing.T) {
	subject, text, html, err := RenderResultsEmail(&models.AnalysisResult{
		FaceShapeLabel:    "Oval",
		OverallImpression: "<script>alert(1)</script>",
		Recommendations:   []models.Recommendation{{Name: "Layered Bob", Reason: "softens", Score: 90}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, subject)
	assert.Contains(t, text, "1. Layered Bob - softens")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "Layered Bob")

	_, _, _, err = RenderResultsEmail(nil)
	assert.Error(t, err)
}
