package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/raushankrgupta/hair-director/utils"
)

// CheckoutRequest optionally pre-fills the buyer's email
type CheckoutRequest struct {
	Email string `json:"email"`
}

// GrantRequest is the explicit entitlement grant payload
type GrantRequest struct {
	DeviceID string `json:"device_id"`
	Email    string `json:"email"`
}

// CreateCheckout opens a hosted checkout session.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Checkout API]")

	if h.Payments == nil {
		utils.RespondError(w, &logMessageBuilder, "Payments are currently unavailable", http.StatusServiceUnavailable)
		return
	}

	var req CheckoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email != "" {
		if err := utils.ValidateEmail(req.Email); err != nil {
			utils.RespondError(w, &logMessageBuilder, "Please enter a valid email address", http.StatusBadRequest)
			return
		}
	}

	checkout, err := h.Payments.CreateCheckout(r.Context(), req.Email)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, err.Error())
		utils.RespondError(w, &logMessageBuilder, "Could not start checkout. Please try again.", http.StatusBadGateway)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Checkout %s created", checkout.ID))
	utils.RespondJSON(w, http.StatusOK, checkout)
}

// GetPremium returns the entitlement of the caller's device.
func (h *Handler) GetPremium(w http.ResponseWriter, r *http.Request) {
	claims, err := GetDeviceFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.gateFor(claims.DeviceID).Status(r.Context()))
}

// GrantPremium grants an entitlement to a device. It requires the admin key.
func (h *Handler) GrantPremium(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Grant Premium API]")

	key := r.Header.Get("X-Admin-Key")
	if h.AdminAPIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.AdminAPIKey)) != 1 {
		utils.RespondError(w, &logMessageBuilder, "Forbidden", http.StatusForbidden)
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		utils.RespondError(w, &logMessageBuilder, "device_id is required", http.StatusBadRequest)
		return
	}

	gate := h.gateFor(req.DeviceID)
	if err := gate.Grant(r.Context(), strings.TrimSpace(req.Email), ""); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Failed to grant: %v", err), http.StatusInternalServerError)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Granted device %s", req.DeviceID))
	utils.RespondJSON(w, http.StatusOK, gate.Status(r.Context()))
}
