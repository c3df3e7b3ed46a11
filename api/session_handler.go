package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/orchestrator"
	"github.com/raushankrgupta/hair-director/utils"
)

// BootResponse is the application-start payload.
type BootResponse struct {
	Tab              models.Tab        `json:"tab"`
	PaymentConfirmed bool              `json:"paymentConfirmed"`
	Session          orchestrator.View `json:"session"`
}

// CaptureRequest carries an image as a data URI when not uploading multipart.
type CaptureRequest struct {
	DataURI string `json:"data_uri"`
	Email   string `json:"email"`
}

// EmailRequest is the results email payload.
type EmailRequest struct {
	Email string `json:"email"`
}

// BootApp handles GET /app?tab=&checkout_id=
func (h *Handler) BootApp(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Boot API]")

	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tab := models.ParseTab(r.URL.Query().Get("tab"))
	checkoutID := r.URL.Query().Get("checkout_id")
	if checkoutID != "" {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Returned from checkout %s", checkoutID))
	}

	view, confirmed := sess.Boot(r.Context(), checkoutID)
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Tab=%s State=%s Resumed=%t", tab, view.State, view.Resumed))
	utils.RespondJSON(w, http.StatusOK, BootResponse{Tab: tab, PaymentConfirmed: confirmed, Session: view})
}

// GetSession returns the current state and re-evaluates the one-shot triggers.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sess.Observe(r.Context())
	utils.RespondJSON(w, http.StatusOK, sess.View(r.Context()))
}

// CaptureImage accepts a multipart "image" file or a JSON data URI.
func (h *Handler) CaptureImage(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Capture API]")

	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var img utils.InlineImage
	var email string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		img, email, err = readMultipartImage(w, r)
	} else {
		var req CaptureRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize*2)
		if err = json.NewDecoder(r.Body).Decode(&req); err == nil {
			img, err = utils.ParseDataURI(req.DataURI)
			email = req.Email
		}
	}
	if err != nil {
		if errors.Is(err, utils.ErrNotImage) {
			utils.RespondError(w, &logMessageBuilder, "Please select an image file", http.StatusBadRequest)
			return
		}
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid image upload: %v", err), http.StatusBadRequest)
		return
	}
	if email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			utils.RespondError(w, &logMessageBuilder, "Please enter a valid email address", http.StatusBadRequest)
			return
		}
	}

	view, err := sess.Capture(r.Context(), img, email)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, err.Error(), http.StatusConflict)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Captured %s (%d bytes)", img.MIMEType, len(img.Data)))
	utils.RespondJSON(w, http.StatusOK, view)
}

func readMultipartImage(w http.ResponseWriter, r *http.Request) (utils.InlineImage, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return utils.InlineImage{}, "", fmt.Errorf("error parsing form data: %w", err)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return utils.InlineImage{}, "", fmt.Errorf("image is required: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return utils.InlineImage{}, "", err
	}
	img, err := utils.SniffImage(data)
	return img, r.FormValue("email"), err
}

// AnalyzeSession runs the paid analysis. Without an entitlement it answers 402
// with the checkout URL to redirect to.
func (h *Handler) AnalyzeSession(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Analyze API]")

	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	out, err := sess.Start(r.Context())
	switch {
	case errors.Is(err, orchestrator.ErrPaymentUnavailable):
		utils.RespondError(w, &logMessageBuilder, "Payments are currently unavailable", http.StatusServiceUnavailable)
		return
	case errors.Is(err, orchestrator.ErrNoImage):
		utils.RespondError(w, &logMessageBuilder, "Please upload a photo first", http.StatusBadRequest)
		return
	case err != nil:
		utils.AddToLogMessage(&logMessageBuilder, err.Error())
		utils.RespondError(w, &logMessageBuilder, "Could not start checkout. Please try again.", http.StatusBadGateway)
		return
	}

	if out.PaymentURL != "" {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Payment required, checkout %s", out.CheckoutID))
		utils.RespondJSON(w, http.StatusPaymentRequired, out)
		return
	}

	if e := out.Session.Error; e != nil {
		utils.AddToLogMessage(&logMessageBuilder, e.Error())
		if e.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(e.RetryAfter.Seconds())))
		}
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Started=%t State=%s", out.Started, out.Session.State))
	utils.RespondJSON(w, http.StatusOK, out)
}

// RetrySession moves ERROR back to PREVIEW.
func (h *Handler) RetrySession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	view, err := sess.Retry(r.Context())
	if err != nil {
		utils.RespondError(w, nil, err.Error(), http.StatusConflict)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// ResetSession returns to IDLE; leaving a finished result needs ?confirm=true.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	view, err := sess.Reset(r.Context(), confirm)
	if err != nil {
		utils.RespondError(w, nil, err.Error(), http.StatusConflict)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// EmailResults sends the current analysis to an address.
func (h *Handler) EmailResults(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Email Results API]")

	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	err = sess.SendResults(r.Context(), strings.TrimSpace(req.Email))
	switch {
	case errors.Is(err, utils.ErrInvalidEmail):
		utils.RespondError(w, &logMessageBuilder, "Please enter a valid email address", http.StatusBadRequest)
		return
	case errors.Is(err, orchestrator.ErrNoResults):
		utils.RespondError(w, &logMessageBuilder, "There are no results to send yet", http.StatusConflict)
		return
	case err != nil:
		utils.AddToLogMessage(&logMessageBuilder, err.Error())
		utils.RespondError(w, &logMessageBuilder, "Failed to send email. Please try again.", http.StatusBadGateway)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Results emailed")
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Results sent"})
}
