package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/premium"
	"github.com/raushankrgupta/hair-director/session"
	"github.com/raushankrgupta/hair-director/storage"
	"github.com/raushankrgupta/hair-director/store"
	"github.com/raushankrgupta/hair-director/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	result *models.AnalysisResult
	err    error
	calls  int
}

func (f *fakeAnalyzer) AnalyzeFace(ctx context.Context, img utils.InlineImage) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.result
	return &copied, nil
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	names []string
	calls int
}

func (f *fakeGenerator) GenerateStyleGrid(ctx context.Context, img utils.InlineImage, styleNames []string) (utils.InlineImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.names = styleNames
	if f.err != nil {
		return utils.InlineImage{}, f.err
	}
	return utils.InlineImage{MIMEType: "image/png", Data: []byte("grid-bytes")}, nil
}

type fakePayments struct {
	mu     sync.Mutex
	emails []string
}

func (f *fakePayments) CreateCheckout(ctx context.Context, email string) (*utils.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, email)
	return &utils.CheckoutSession{ID: "chk_1", URL: "https://pay.example.com/chk_1"}, nil
}

type fakeCheckouts struct {
	detail *utils.CheckoutDetail
	err    error
}

func (f *fakeCheckouts) GetCheckout(ctx context.Context, id string) (*utils.CheckoutDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := *f.detail
	d.ID = id
	return &d, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMailer) SendResults(ctx context.Context, toEmail string, result *models.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toEmail)
	return nil
}

func (f *fakeMailer) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type harness struct {
	durable   *storage.MemoryKV
	ephemeral *storage.MemoryKV
	analyzer  *fakeAnalyzer
	generator *fakeGenerator
	payments  *fakePayments
	checkouts *fakeCheckouts
	mailer    *fakeMailer
	deps      Deps
	session   *Session
}

func fiveRecommendations() []models.Recommendation {
	names := []string{"Wispy Bangs", "Blunt Lob", "Soft Shag", "Italian Bob", "Butterfly Cut"}
	recs := make([]models.Recommendation, 0, len(names))
	for i, name := range names {
		recs = append(recs, models.Recommendation{ID: name, Name: name, Reason: "fits", Score: 90 - i})
	}
	return recs
}

func newHarness(t *testing.T, durableQuota, ephemeralQuota int) *harness {
	t.Helper()
	h := &harness{
		durable:   storage.NewMemoryKV(durableQuota, 0),
		ephemeral: storage.NewMemoryKV(ephemeralQuota, 0),
		analyzer: &fakeAnalyzer{result: &models.AnalysisResult{
			FaceShape:       models.FaceShapeOval,
			SkinTone:        models.SkinToneMedium,
			UpperRatio:      33,
			MiddleRatio:     34,
			LowerRatio:      33,
			Features:        []models.Feature{{Name: "jawline", Label: "Soft jawline", Impact: models.ImpactPositive}},
			Recommendations: fiveRecommendations(),
		}},
		generator: &fakeGenerator{},
		payments:  &fakePayments{},
		checkouts: &fakeCheckouts{detail: &utils.CheckoutDetail{Email: "buyer@example.com", Status: "succeeded"}},
		mailer:    &fakeMailer{},
	}
	h.deps = Deps{
		Analyzer:     h.analyzer,
		Generator:    h.generator,
		Payments:     h.payments,
		Checkouts:    h.checkouts,
		Mailer:       h.mailer,
		SupportEmail: "support@example.com",
	}
	h.session = h.newSession("session-1")
	return h
}

func (h *harness) newSession(sessionID string) *Session {
	return NewSession(h.deps,
		store.New(h.durable, "device-1", store.Options{HistoryMaxItems: 10}),
		session.NewSnapshots(h.ephemeral, sessionID),
		premium.NewGate(h.durable, "device-1"),
	)
}

func (h *harness) history(t *testing.T) []models.HistoryItem {
	t.Helper()
	return h.session.Store().History(context.Background())
}

func testImage(t *testing.T) utils.InlineImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return utils.InlineImage{MIMEType: "image/png", Data: buf.Bytes()}
}

func TestScenarioNoEntitlementRedirectsToPayment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)

	out, err := h.session.Start(ctx)
	require.NoError(t, err)
	assert.False(t, out.Started)
	assert.Equal(t, "https://pay.example.com/chk_1", out.PaymentURL)
	assert.Equal(t, StatePreview, out.Session.State)
	assert.Nil(t, out.Session.Error)
	assert.Equal(t, 0, h.analyzer.Calls())

	pending, ok := session.NewSnapshots(h.ephemeral, "session-1").TakePending(ctx)
	require.True(t, ok)
	assert.Equal(t, testImage(t).DataURI(), pending.Image)
}

func TestScenarioFiveRecommendationsBecomeNine(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	require.NoError(t, h.session.Gate().Grant(ctx, "", "chk_1"))

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	out, err := h.session.Start(ctx)
	require.NoError(t, err)
	assert.True(t, out.Started)

	view := out.Session
	require.Equal(t, StateCompleted, view.State)
	require.Len(t, view.RecommendedStyles, 9)
	assert.Equal(t, []string{"Wispy Bangs", "Blunt Lob", "Soft Shag", "Italian Bob", "Butterfly Cut"}, view.RecommendedStyles[:5])
	assert.Equal(t, view.RecommendedStyles, h.generator.names)
	require.Len(t, view.Analysis.Recommendations, 9)
	assert.Equal(t, 9, view.Analysis.Recommendations[8].Priority)
	assert.NotEmpty(t, view.ResultImage)

	assert.False(t, h.session.Gate().IsGranted(ctx))
	items := h.history(t)
	require.Len(t, items, 1)
	assert.Equal(t, view.HistoryID, items[0].ID)
	assert.Equal(t, view.RecommendedStyles, items[0].RecommendedStyles)
	require.NotNil(t, items[0].FullAnalysisResult)

	snap, ok := session.NewSnapshots(h.ephemeral, "session-1").Load(ctx)
	require.True(t, ok)
	assert.Equal(t, view.ResultImage, snap.ResultImage)
}

func TestScenarioGenerationFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	h.generator.err = errors.New("model overloaded")
	require.NoError(t, h.session.Gate().Grant(ctx, "", "chk_42"))

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	out, err := h.session.Start(ctx)
	require.NoError(t, err)

	view := out.Session
	assert.Equal(t, StateError, view.State)
	assert.False(t, view.IsPremium)
	assert.False(t, h.session.Gate().IsGranted(ctx))
	assert.Empty(t, h.history(t))

	require.NotNil(t, view.Error)
	assert.Equal(t, StateGenerating, view.Error.Stage)
	assert.False(t, view.Error.NeedsCredentialChange)
	assert.NotContains(t, view.Error.Message, "model overloaded")
	assert.Contains(t, view.Error.RefundURL, "mailto:support@example.com")
	assert.Contains(t, view.Error.RefundURL, "chk_42")
}

func TestScenarioPersistenceAtQuotaStillCompletes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 400, 200)
	require.NoError(t, h.session.Gate().Grant(ctx, "", "chk_1"))

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	out, err := h.session.Start(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, out.Session.State)
	assert.Empty(t, out.Session.HistoryID, "no id for an item that was never stored")
	assert.Empty(t, h.history(t))
	assert.False(t, h.session.Gate().IsGranted(ctx))
	assert.Equal(t, 1, h.generator.calls)

	_, ok := session.NewSnapshots(h.ephemeral, "session-1").Load(ctx)
	assert.False(t, ok)
}

func TestScenarioResetFromCompleted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))
	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	_, err = h.session.Start(ctx)
	require.NoError(t, err)
	before := h.history(t)
	require.Len(t, before, 1)

	view, err := h.session.Reset(ctx, false)
	assert.ErrorIs(t, err, ErrConfirmRequired)
	assert.Equal(t, StateCompleted, view.State)

	view, err = h.session.Reset(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, view.State)
	assert.Empty(t, view.OriginalImage)
	assert.Empty(t, view.ResultImage)
	assert.Nil(t, view.Analysis)

	_, ok := session.NewSnapshots(h.ephemeral, "session-1").Load(ctx)
	assert.False(t, ok)
	assert.Equal(t, before, h.history(t))
}

func TestAnalysisFailureFlagsCredentialChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	h.analyzer.err = errors.New("googleapi: Error 403: Permission denied on resource")
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	out, err := h.session.Start(ctx)
	require.NoError(t, err)

	require.NotNil(t, out.Session.Error)
	assert.Equal(t, StateError, out.Session.State)
	assert.Equal(t, StateAnalyzing, out.Session.Error.Stage)
	assert.True(t, out.Session.Error.NeedsCredentialChange)
	assert.Empty(t, out.Session.Error.RefundURL, "no checkout on record")
	assert.Equal(t, 0, h.generator.calls)
	assert.False(t, h.session.Gate().IsGranted(ctx))
}

func TestRateLimitMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	h.analyzer.err = &utils.RateLimitError{RetryAfter: 30 * time.Second, Err: errors.New("429")}
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	out, err := h.session.Start(ctx)
	require.NoError(t, err)

	require.NotNil(t, out.Session.Error)
	assert.Contains(t, out.Session.Error.Message, "30 seconds")
	assert.Equal(t, 30*time.Second, out.Session.Error.RetryAfter)
}

func TestStartOutsidePreviewIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))

	out, err := h.session.Start(ctx)
	require.NoError(t, err)
	assert.False(t, out.Started)
	assert.Equal(t, StateIdle, out.Session.State)
	assert.Equal(t, 0, h.analyzer.Calls())
	assert.True(t, h.session.Gate().IsGranted(ctx))
}

func TestRetryReturnsToPreview(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	h.generator.err = errors.New("boom")
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))
	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	_, err = h.session.Start(ctx)
	require.NoError(t, err)

	view, err := h.session.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatePreview, view.State)
	assert.Nil(t, view.Error)
	assert.NotEmpty(t, view.OriginalImage)

	_, err = h.session.Retry(ctx)
	assert.Error(t, err)
}

func TestCaptureClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))
	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	_, err = h.session.Start(ctx)
	require.NoError(t, err)

	view, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	assert.Equal(t, StatePreview, view.State)
	assert.Empty(t, view.ResultImage)
	_, ok := session.NewSnapshots(h.ephemeral, "session-1").Load(ctx)
	assert.False(t, ok)
}

func TestPaymentReturnAutoStartFiresOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	out, err := h.session.Start(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, out.PaymentURL)

	// Back from checkout in a freshly loaded tab.
	tab := h.newSession("session-1")
	_, confirmed := tab.Boot(ctx, "chk_1")
	assert.True(t, confirmed)
	tab.Wait()

	view := tab.View(ctx)
	require.Equal(t, StateCompleted, view.State)
	assert.Equal(t, "buyer@example.com", view.Email)
	assert.Equal(t, FlagDone.String(), view.AutoStart)
	assert.Equal(t, 1, h.analyzer.Calls())
	assert.False(t, tab.Gate().IsGranted(ctx))

	for i := 0; i < 3; i++ {
		tab.Observe(ctx)
		tab.Wait()
	}
	assert.Equal(t, 1, h.analyzer.Calls())
	assert.Equal(t, []string{"buyer@example.com"}, h.mailer.Sent())

	// Reloading the return URL neither re-grants nor re-runs.
	_, confirmed = tab.Boot(ctx, "chk_1")
	assert.True(t, confirmed)
	tab.Wait()
	assert.Equal(t, 1, h.analyzer.Calls())
	assert.False(t, tab.Gate().IsGranted(ctx))
	assert.Len(t, h.mailer.Sent(), 1)
}

func TestPaymentReturnUnpaidCheckoutDoesNotGrant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	h.checkouts.detail = &utils.CheckoutDetail{Status: "expired"}

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	_, err = h.session.Start(ctx)
	require.NoError(t, err)

	view, confirmed := h.session.Boot(ctx, "chk_1")
	h.session.Wait()
	assert.False(t, confirmed)
	assert.Equal(t, StatePreview, view.State)
	assert.False(t, h.session.Gate().IsGranted(ctx))
	assert.Equal(t, 0, h.analyzer.Calls())
}

func TestPaymentReturnLookupFailureStillGrants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	h.checkouts.err = errors.New("lookup unavailable")

	_, confirmed := h.session.Boot(ctx, "chk_7")
	h.session.Wait()
	assert.True(t, confirmed)
	assert.True(t, h.session.Gate().IsGranted(ctx))
	assert.Equal(t, "chk_7", h.session.Gate().Status(ctx).CheckoutID)
	assert.Equal(t, 0, h.analyzer.Calls(), "nothing pending to auto-start")
}

func TestPaymentReturnUnknownCheckoutDoesNotGrant(t *testing.T) {
	ctx := context.Background()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer provider.Close()

	h := newHarness(t, 0, 0)
	h.deps.Checkouts = utils.NewCheckoutClient(provider.URL, "secret", "prod_1", "")
	tab := h.newSession("session-2")

	view, confirmed := tab.Boot(ctx, "made-up-id-123")
	tab.Wait()
	assert.False(t, confirmed)
	assert.Equal(t, StateIdle, view.State)
	assert.False(t, tab.Gate().IsGranted(ctx))
}

func TestPaymentReturnGrantsOnFullDevice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2000, 0)
	require.NoError(t, h.durable.Set(ctx, "device-1", storage.KeySaved, make([]byte, 1950)))
	require.ErrorIs(t, h.durable.Set(ctx, "device-1", storage.KeyHistory, make([]byte, 100)), storage.ErrQuotaExceeded)

	_, confirmed := h.session.Boot(ctx, "chk_paid")
	h.session.Wait()
	assert.True(t, confirmed)
	status := h.session.Gate().Status(ctx)
	assert.True(t, status.IsPremium)
	assert.Equal(t, "chk_paid", status.CheckoutID)
}

func TestPaymentReturnEmailsResultsWithoutHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 300, 0)

	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	out, err := h.session.Start(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, out.PaymentURL)

	tab := h.newSession("session-1")
	_, confirmed := tab.Boot(ctx, "chk_1")
	require.True(t, confirmed)
	tab.Wait()

	view := tab.View(ctx)
	require.Equal(t, StateCompleted, view.State)
	assert.Empty(t, view.HistoryID)
	assert.Empty(t, h.history(t))

	for i := 0; i < 3; i++ {
		tab.Observe(ctx)
		tab.Wait()
	}
	assert.Equal(t, []string{"buyer@example.com"}, h.mailer.Sent())
}

func TestPaymentReturnReloadResumesSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))
	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	_, err = h.session.Start(ctx)
	require.NoError(t, err)

	// The in-memory session was swept; the tab reloads the return URL.
	reloaded := h.newSession("session-1")
	view, confirmed := reloaded.Boot(ctx, "chk_1")
	reloaded.Wait()
	assert.True(t, confirmed)
	assert.Equal(t, StateCompleted, view.State)
	assert.True(t, view.Resumed)
	assert.Equal(t, 1, h.analyzer.Calls())
}

func TestBootResumesSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)
	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))
	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	_, err = h.session.Start(ctx)
	require.NoError(t, err)

	reloaded := h.newSession("session-1")
	view, confirmed := reloaded.Boot(ctx, "")
	assert.False(t, confirmed)
	assert.Equal(t, StateCompleted, view.State)
	assert.True(t, view.Resumed)
	assert.Len(t, view.RecommendedStyles, 9)

	otherTab := h.newSession("session-2")
	view, _ = otherTab.Boot(ctx, "")
	assert.Equal(t, StateIdle, view.State)
}

func TestSendResultsValidatesLocally(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 0, 0)

	assert.ErrorIs(t, h.session.SendResults(ctx, "not-an-email"), utils.ErrInvalidEmail)
	assert.ErrorIs(t, h.session.SendResults(ctx, "user@example.com"), ErrNoResults)
	assert.Empty(t, h.mailer.Sent())

	require.NoError(t, h.session.Gate().Grant(ctx, "", ""))
	_, err := h.session.Capture(ctx, testImage(t), "")
	require.NoError(t, err)
	_, err = h.session.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, h.session.SendResults(ctx, "user@example.com"))
	assert.Equal(t, []string{"user@example.com"}, h.mailer.Sent())
	assert.Equal(t, "user@example.com", h.session.View(ctx).Email)
}

func TestRefundURL(t *testing.T) {
	assert.Empty(t, RefundURL("", "chk_1"))
	assert.Empty(t, RefundURL("support@example.com", ""))
	assert.Equal(t,
		"mailto:support@example.com?subject=Refund%20request&body=My%20analysis%20failed.%20Please%20refund%20checkout%20chk_1.",
		RefundURL("support@example.com", "chk_1"))
}
