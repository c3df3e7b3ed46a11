package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/raushankrgupta/hair-director/utils"
)

// DeviceTokenResponse is returned by the device auth endpoint
type DeviceTokenResponse struct {
	Token     string `json:"token"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
}

// IssueDeviceToken starts a browsing session. A valid token in the request keeps
// its device (and so its History, Saved and entitlement); every call opens a new session.
func (h *Handler) IssueDeviceToken(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Device Auth API]")

	deviceID := uuid.NewString()
	if claims, err := h.claimsFromRequest(r); err == nil {
		deviceID = claims.DeviceID
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Existing device %s", deviceID))
	} else {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("New device %s", deviceID))
	}
	sessionID := uuid.NewString()

	token, err := utils.GenerateDeviceToken(h.JWTSecret, deviceID, sessionID)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Failed to generate token: %v", err), http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, DeviceTokenResponse{Token: token, DeviceID: deviceID, SessionID: sessionID})
}
