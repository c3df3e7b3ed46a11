package orchestrator

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/premium"
	"github.com/raushankrgupta/hair-director/storage"
	"github.com/raushankrgupta/hair-director/utils"
)

// Boot runs the application-start checks. With a checkout id it confirms the
// payment, grants the entitlement and restores the pre-payment image with
// auto-start primed. When nothing was restored, a resumable snapshot is. It
// then observes the session once and reports whether a payment was confirmed.
func (s *Session) Boot(ctx context.Context, checkoutID string) (View, bool) {
	confirmed := false
	if checkoutID = strings.TrimSpace(checkoutID); checkoutID != "" {
		confirmed = s.confirmCheckout(ctx, checkoutID)
	}
	s.resume(ctx)
	s.Observe(ctx)
	return s.View(ctx), confirmed
}

func checkoutSucceeded(status string) bool {
	switch strings.ToLower(status) {
	case "", "succeeded", "confirmed", "paid", "complete", "completed":
		return true
	}
	return false
}

func (s *Session) confirmCheckout(ctx context.Context, checkoutID string) bool {
	var email string
	if s.deps.Checkouts != nil {
		detail, err := s.deps.Checkouts.GetCheckout(ctx, checkoutID)
		var statusErr *utils.CheckoutStatusError
		switch {
		case errors.As(err, &statusErr) && statusErr.Rejected():
			log.Printf("orchestrator: checkout %s rejected by provider, not granting: %v", checkoutID, err)
			return false
		case err != nil:
			// Unreachable provider; the lookup only backfills the email.
			log.Printf("orchestrator: checkout %s lookup failed: %v", checkoutID, err)
		case !checkoutSucceeded(detail.Status):
			log.Printf("orchestrator: checkout %s is %q, not granting", checkoutID, detail.Status)
			return false
		default:
			email = detail.Email
		}
	}

	if err := s.gate.Grant(ctx, email, checkoutID); err != nil {
		if !errors.Is(err, premium.ErrCheckoutRedeemed) {
			log.Printf("orchestrator: failed to grant checkout %s: %v", checkoutID, err)
			return false
		}
		log.Printf("orchestrator: checkout %s already redeemed", checkoutID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() || s.snapshots.Marker(ctx, storage.KeyAutoStart) == checkoutID {
		return true
	}
	pending, ok := s.snapshots.TakePending(ctx)
	if !ok {
		return true
	}

	s.clearWorkLocked()
	s.state = StatePreview
	s.originalImage = pending.Image
	s.email = pending.Email
	if s.email == "" {
		s.email = email
	}
	s.autoStart = FlagNotStarted
	s.autoStartArmed = true
	s.snapshots.SetMarker(ctx, storage.KeyAutoStart, checkoutID)
	if s.email != "" && s.deps.Mailer != nil {
		s.autoExport = FlagNotStarted
		s.autoExportArmed = true
	}
	log.Printf("orchestrator: restored pre-payment image, auto-start primed for checkout %s", checkoutID)
	return true
}

func (s *Session) resume(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return
	}
	snap, ok := s.snapshots.Load(ctx)
	if !ok {
		return
	}
	s.state = StateCompleted
	s.originalImage = snap.OriginalImage
	s.resultImage = snap.ResultImage
	s.analysis = snap.AnalysisResult
	s.recommended = snap.RecommendedStyles
	s.email = snap.UserEmail
	s.resumed = true
}

// Observe re-evaluates the one-shot triggers. The payment-return auto-start
// fires at most once, the first time the session is in PREVIEW with an image
// and a granted entitlement. The results email is sent at most once per result.
// Both run in the background; Wait blocks until they finish.
func (s *Session) Observe(ctx context.Context) {
	s.mu.Lock()
	s.lastSeen = s.now()

	var auto *attempt
	if s.autoStartArmed && s.autoStart == FlagNotStarted && s.state == StatePreview && s.originalImage != "" {
		if status := s.gate.Status(ctx); status.IsPremium {
			s.autoStart = FlagInFlight
			s.autoStartArmed = false
			a, err := s.beginLocked(status)
			if err != nil {
				log.Printf("orchestrator: auto-start skipped: %v", err)
				s.autoStart = FlagDone
			}
			auto = a
		}
	}

	var exportTo, exportID string
	var exportResult *models.AnalysisResult
	if s.autoExportArmed && s.autoExport == FlagNotStarted && s.state == StateCompleted && s.email != "" && s.analysis != nil && s.resultID != "" {
		s.autoExportArmed = false
		if s.snapshots.Marker(ctx, storage.KeyAutoExported) == s.resultID {
			s.autoExport = FlagDone
		} else {
			s.autoExport = FlagInFlight
			exportTo, exportID, exportResult = s.email, s.resultID, s.analysis
		}
	}
	s.mu.Unlock()

	if auto != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, auto)
			s.mu.Lock()
			s.autoStart = FlagDone
			s.mu.Unlock()
		}()
	}

	if exportResult != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.autoSend(ctx, exportTo, exportID, exportResult)
		}()
	}
}

func (s *Session) autoSend(parent context.Context, to, resultID string, result *models.AnalysisResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), exportTimeout)
	defer cancel()

	err := s.deps.Mailer.SendResults(ctx, to, result)

	s.mu.Lock()
	s.autoExport = FlagDone
	s.mu.Unlock()
	if err != nil {
		log.Printf("orchestrator: auto-email of %s failed: %v", resultID, err)
		return
	}
	s.snapshots.SetMarker(ctx, storage.KeyAutoExported, resultID)
	log.Printf("orchestrator: results %s emailed", resultID)
}
