package models

import (
	"strings"
	"time"
)

// SessionSnapshot is the ephemeral copy of the in-progress session used for
// reload and payment-redirect recovery.
type SessionSnapshot struct {
	OriginalImage     string          `json:"originalImage"`
	ResultImage       string          `json:"resultImage"`
	AnalysisResult    *AnalysisResult `json:"analysisResult"`
	RecommendedStyles []string        `json:"recommendedStyles"`
	UserEmail         string          `json:"userEmail,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
}

// Resumable reports whether the three required fields are present.
func (s *SessionSnapshot) Resumable() bool {
	return s != nil && s.OriginalImage != "" && s.ResultImage != "" && s.AnalysisResult != nil
}

// PremiumStatus is the single-use analysis entitlement record.
type PremiumStatus struct {
	IsPremium    bool       `json:"isPremium"`
	PurchaseDate *time.Time `json:"purchaseDate,omitempty"`
	Email        string     `json:"email,omitempty"`
	CheckoutID   string     `json:"checkoutId,omitempty"`
}

// Tab is the initially visible screen selected by the ?tab= query parameter.
type Tab string

const (
	TabHome    Tab = "home"
	TabHistory Tab = "history"
	TabSaved   Tab = "saved"
)

// ParseTab maps a query value to a Tab, falling back to TabHome.
func ParseTab(raw string) Tab {
	switch t := Tab(strings.ToLower(strings.TrimSpace(raw))); t {
	case TabHistory, TabSaved:
		return t
	}
	return TabHome
}
