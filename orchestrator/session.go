package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/premium"
	"github.com/raushankrgupta/hair-director/session"
	"github.com/raushankrgupta/hair-director/store"
	"github.com/raushankrgupta/hair-director/styles"
	"github.com/raushankrgupta/hair-director/utils"
)

const (
	defaultAttemptTimeout = 5 * time.Minute
	exportTimeout         = 30 * time.Second
)

// Analyzer returns the face analysis of an image.
type Analyzer interface {
	AnalyzeFace(ctx context.Context, img utils.InlineImage) (*models.AnalysisResult, error)
}

// Generator renders the 3x3 style grid for an image.
type Generator interface {
	GenerateStyleGrid(ctx context.Context, img utils.InlineImage, styleNames []string) (utils.InlineImage, error)
}

// PaymentRequester opens a hosted checkout.
type PaymentRequester interface {
	CreateCheckout(ctx context.Context, email string) (*utils.CheckoutSession, error)
}

// CheckoutLookup fetches a finished checkout.
type CheckoutLookup interface {
	GetCheckout(ctx context.Context, id string) (*utils.CheckoutDetail, error)
}

// Mailer sends the analysis results to an address.
type Mailer interface {
	SendResults(ctx context.Context, toEmail string, result *models.AnalysisResult) error
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Analyzer       Analyzer
	Generator      Generator
	Payments       PaymentRequester
	Checkouts      CheckoutLookup
	Mailer         Mailer
	SupportEmail   string
	AttemptTimeout time.Duration
}

// Session is the wizard state of one browsing session. Remote calls run
// without holding mu; the ANALYZING/GENERATING states keep a second attempt out.
type Session struct {
	mu sync.Mutex
	wg sync.WaitGroup

	deps      Deps
	store     *store.Local
	snapshots *session.Snapshots
	gate      *premium.Gate
	now       func() time.Time

	state         State
	originalImage string
	resultImage   string
	analysis      *models.AnalysisResult
	recommended   []string
	email         string
	historyID     string
	resultID      string
	resumed       bool
	lastErr       *AttemptError

	autoStart       Flag
	autoStartArmed  bool
	autoExport      Flag
	autoExportArmed bool

	lastSeen time.Time
}

// Outcome is the result of a start request.
type Outcome struct {
	Session    View   `json:"session"`
	Started    bool   `json:"started"`
	PaymentURL string `json:"paymentUrl,omitempty"`
	CheckoutID string `json:"checkoutId,omitempty"`
}

type attempt struct {
	image      utils.InlineImage
	original   string
	email      string
	granted    bool
	checkoutID string
}

func NewSession(deps Deps, local *store.Local, snapshots *session.Snapshots, gate *premium.Gate) *Session {
	s := &Session{
		deps:       deps,
		store:      local,
		snapshots:  snapshots,
		gate:       gate,
		now:        time.Now,
		state:      StateIdle,
		autoStart:  FlagDone,
		autoExport: FlagDone,
	}
	s.lastSeen = s.now()
	return s
}

// Store is the device's History and Saved collections.
func (s *Session) Store() *store.Local { return s.store }

// Gate is the device's entitlement.
func (s *Session) Gate() *premium.Gate { return s.gate }

// Capture accepts a newly acquired image and moves to PREVIEW. Any previous
// snapshot is cleared since the new work supersedes it.
func (s *Session) Capture(ctx context.Context, img utils.InlineImage, email string) (View, error) {
	s.mu.Lock()
	if s.state.Busy() {
		s.mu.Unlock()
		return s.View(ctx), ErrBusy
	}
	s.snapshots.Clear(ctx)
	s.clearWorkLocked()
	s.state = StatePreview
	s.originalImage = img.DataURI()
	if email != "" {
		s.email = email
	}
	s.mu.Unlock()

	log.Printf("orchestrator: captured %s image", img.MIMEType)
	return s.View(ctx), nil
}

// Start runs one analysis attempt. Outside PREVIEW it is a no-op. Without an
// entitlement the image is backed up and a checkout URL is returned instead;
// the state stays PREVIEW.
func (s *Session) Start(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.state != StatePreview {
		s.mu.Unlock()
		return Outcome{Session: s.View(ctx)}, nil
	}
	status := s.gate.Status(ctx)
	if !status.IsPremium {
		image, email := s.originalImage, s.email
		s.mu.Unlock()
		return s.requestPayment(ctx, image, email)
	}
	a, err := s.beginLocked(status)
	s.mu.Unlock()
	if err != nil {
		return Outcome{Session: s.View(ctx)}, err
	}

	s.run(ctx, a)
	return Outcome{Session: s.View(ctx), Started: true}, nil
}

func (s *Session) beginLocked(status models.PremiumStatus) (*attempt, error) {
	img, err := utils.ParseDataURI(s.originalImage)
	if err != nil {
		return nil, ErrNoImage
	}
	if s.email == "" {
		s.email = status.Email
	}
	s.state = StateAnalyzing
	s.lastErr = nil
	return &attempt{
		image:      img,
		original:   s.originalImage,
		email:      s.email,
		granted:    status.IsPremium,
		checkoutID: status.CheckoutID,
	}, nil
}

func (s *Session) requestPayment(ctx context.Context, image, email string) (Outcome, error) {
	if s.deps.Payments == nil {
		return Outcome{Session: s.View(ctx)}, ErrPaymentUnavailable
	}
	s.snapshots.BackupPending(ctx, session.PendingUpload{Image: image, Email: email})

	checkout, err := s.deps.Payments.CreateCheckout(ctx, email)
	if err != nil {
		return Outcome{Session: s.View(ctx)}, fmt.Errorf("failed to create checkout: %w", err)
	}
	log.Printf("orchestrator: redirecting to checkout %s", checkout.ID)
	return Outcome{Session: s.View(ctx), PaymentURL: checkout.URL, CheckoutID: checkout.ID}, nil
}

// run drives ANALYZING -> GENERATING -> COMPLETED (or ERROR). It has no cancel
// path, so the caller's cancellation is dropped.
func (s *Session) run(parent context.Context, a *attempt) {
	timeout := s.deps.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	analysis, err := s.deps.Analyzer.AnalyzeFace(ctx, a.image)
	if err == nil && analysis == nil {
		err = errors.New("analysis returned no result")
	}
	if err != nil {
		s.fail(ctx, a, StateAnalyzing, err)
		return
	}

	result := *analysis
	result.Recommendations = styles.NormalizeRecommendations(analysis.Recommendations)
	names := result.RecommendationNames()

	s.mu.Lock()
	s.state = StateGenerating
	s.analysis = &result
	s.recommended = names
	s.mu.Unlock()

	grid, err := s.deps.Generator.GenerateStyleGrid(ctx, a.image, names)
	if err == nil && len(grid.Data) == 0 {
		err = errors.New("generation returned no image")
	}
	if err != nil {
		s.fail(ctx, a, StateGenerating, err)
		return
	}
	resultImage := grid.DataURI()

	// Each step is best-effort and logs its own failure; the order is fixed.
	s.snapshots.Save(ctx, models.SessionSnapshot{
		OriginalImage:     a.original,
		ResultImage:       resultImage,
		AnalysisResult:    &result,
		RecommendedStyles: names,
		UserEmail:         a.email,
	})
	item, stored := s.store.AddHistoryItem(ctx, models.HistoryItem{
		OriginalImage:      a.original,
		ResultImage:        resultImage,
		FaceAnalysis:       models.SummarizeAnalysis(&result),
		FullAnalysisResult: &result,
		RecommendedStyles:  names,
	})
	s.gate.Consume(ctx)

	s.mu.Lock()
	s.state = StateCompleted
	s.resultImage = resultImage
	s.resultID = item.ID
	if stored {
		s.historyID = item.ID
	}
	s.mu.Unlock()
	log.Printf("orchestrator: attempt %s completed (in history: %t)", item.ID, stored)
}

func (s *Session) fail(ctx context.Context, a *attempt, stage State, err error) {
	log.Printf("orchestrator: %s failed: %v", stage, err)
	s.gate.Consume(ctx)

	ae := newAttemptError(stage, err, a.granted, a.checkoutID, s.deps.SupportEmail)
	s.mu.Lock()
	s.state = StateError
	s.lastErr = ae
	s.mu.Unlock()
}

// Retry returns from ERROR to PREVIEW with the same image.
func (s *Session) Retry(ctx context.Context) (View, error) {
	s.mu.Lock()
	if s.state != StateError {
		state := s.state
		s.mu.Unlock()
		return s.View(ctx), fmt.Errorf("cannot retry from %s", state)
	}
	s.state = StatePreview
	s.lastErr = nil
	s.mu.Unlock()
	return s.View(ctx), nil
}

// Reset returns to IDLE. Leaving a completed result requires confirm; the
// snapshot is cleared then. History is left untouched.
func (s *Session) Reset(ctx context.Context, confirm bool) (View, error) {
	s.mu.Lock()
	if s.state.Busy() {
		s.mu.Unlock()
		return s.View(ctx), ErrBusy
	}
	if s.state == StateCompleted && !confirm {
		s.mu.Unlock()
		return s.View(ctx), ErrConfirmRequired
	}
	s.snapshots.Clear(ctx)
	s.clearWorkLocked()
	s.state = StateIdle
	s.mu.Unlock()
	return s.View(ctx), nil
}

func (s *Session) clearWorkLocked() {
	s.originalImage = ""
	s.resultImage = ""
	s.analysis = nil
	s.recommended = nil
	s.historyID = ""
	s.resultID = ""
	s.resumed = false
	s.lastErr = nil
	s.autoStartArmed = false
	s.autoStart = FlagDone
}

// SendResults emails the current analysis. The address is validated before
// any network call.
func (s *Session) SendResults(ctx context.Context, to string) error {
	if err := utils.ValidateEmail(to); err != nil {
		return err
	}
	s.mu.Lock()
	result := s.analysis
	s.mu.Unlock()
	if result == nil {
		return ErrNoResults
	}
	if s.deps.Mailer == nil {
		return errors.New("email is not configured")
	}
	if err := s.deps.Mailer.SendResults(ctx, to, result); err != nil {
		return err
	}

	s.mu.Lock()
	s.email = to
	s.mu.Unlock()
	return nil
}

// View returns the current state.
func (s *Session) View(ctx context.Context) View {
	granted := s.gate.IsGranted(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		State:             s.state,
		OriginalImage:     s.originalImage,
		ResultImage:       s.resultImage,
		Analysis:          s.analysis,
		RecommendedStyles: s.recommended,
		Email:             s.email,
		HistoryID:         s.historyID,
		Resumed:           s.resumed,
		Error:             s.lastErr,
		IsPremium:         granted,
		AutoStart:         s.autoStart.String(),
		AutoExport:        s.autoExport.String(),
	}
	return v
}

// Wait blocks until background auto-start and auto-export work has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, s.state.Busy()
}
