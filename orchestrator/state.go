// Package orchestrator sequences one browsing session through
// capture -> preview -> paid gate -> analysis -> generation -> persistence.
package orchestrator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/utils"
)

// State is a step of the analysis wizard.
type State string

const (
	StateIdle       State = "IDLE"
	StatePreview    State = "PREVIEW"
	StateAnalyzing  State = "ANALYZING"
	StateGenerating State = "GENERATING"
	StateCompleted  State = "COMPLETED"
	StateError      State = "ERROR"
)

// Busy reports whether a remote attempt is in flight.
func (s State) Busy() bool {
	return s == StateAnalyzing || s == StateGenerating
}

// Flag is a one-shot guard.
type Flag int

const (
	FlagNotStarted Flag = iota
	FlagInFlight
	FlagDone
)

func (f Flag) String() string {
	switch f {
	case FlagInFlight:
		return "in_flight"
	case FlagDone:
		return "done"
	}
	return "not_started"
}

var (
	ErrBusy               = errors.New("an analysis is already in progress")
	ErrNoImage            = errors.New("no image to analyze")
	ErrConfirmRequired    = errors.New("reset requires confirmation")
	ErrNoResults          = errors.New("no results to send")
	ErrPaymentUnavailable = errors.New("payment is not configured")
)

// AttemptError is the user-facing outcome of a failed analysis attempt.
// It never carries the raw collaborator payload in Message.
type AttemptError struct {
	Stage                 State         `json:"stage"`
	Message               string        `json:"message"`
	NeedsCredentialChange bool          `json:"needsCredentialChange"`
	RefundURL             string        `json:"refundUrl,omitempty"`
	RetryAfter            time.Duration `json:"-"`
	Err                   error         `json:"-"`
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s failed: %v", strings.ToLower(string(e.Stage)), e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

var credentialSignals = []string{"permission", "403", "forbidden", "not found", "api key not valid", "api_key_invalid"}

// NeedsCredentialChange reports whether err looks like a rejected or unknown credential.
func NeedsCredentialChange(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, signal := range credentialSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}

// RefundURL builds the pre-filled refund request link for a checkout.
func RefundURL(supportEmail, checkoutID string) string {
	if supportEmail == "" || checkoutID == "" {
		return ""
	}
	subject := "Refund request"
	body := fmt.Sprintf("My analysis failed. Please refund checkout %s.", checkoutID)
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s", supportEmail, url.PathEscape(subject), url.PathEscape(body))
}

func newAttemptError(stage State, err error, granted bool, checkoutID, supportEmail string) *AttemptError {
	ae := &AttemptError{Stage: stage, Err: err, NeedsCredentialChange: NeedsCredentialChange(err)}

	var rateLimit *utils.RateLimitError
	switch {
	case errors.As(err, &rateLimit):
		ae.RetryAfter = rateLimit.RetryAfter
		ae.Message = fmt.Sprintf("The AI service is busy. Please try again in %d seconds.", int(rateLimit.RetryAfter.Seconds()))
	case ae.NeedsCredentialChange:
		ae.Message = "The AI service rejected the request. Please change the API key and try again."
	case stage == StateGenerating:
		ae.Message = "We could not generate your hairstyle preview. Please try again."
	default:
		ae.Message = "We could not analyze your photo. Please try again with a clear, front-facing photo."
	}

	if granted {
		ae.RefundURL = RefundURL(supportEmail, checkoutID)
	}
	return ae
}

// View is the JSON shape of a session's state.
type View struct {
	State             State                  `json:"state"`
	OriginalImage     string                 `json:"originalImage,omitempty"`
	ResultImage       string                 `json:"resultImage,omitempty"`
	Analysis          *models.AnalysisResult `json:"analysis,omitempty"`
	RecommendedStyles []string               `json:"recommendedStyles,omitempty"`
	Email             string                 `json:"email,omitempty"`
	HistoryID         string                 `json:"historyId,omitempty"`
	Resumed           bool                   `json:"resumed,omitempty"`
	Error             *AttemptError          `json:"error,omitempty"`
	IsPremium         bool                   `json:"isPremium"`
	AutoStart         string                 `json:"autoStart"`
	AutoExport        string                 `json:"autoExport"`
}
