package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/raushankrgupta/hair-director/orchestrator"
	"github.com/raushankrgupta/hair-director/premium"
	"github.com/raushankrgupta/hair-director/storage"
	"github.com/raushankrgupta/hair-director/utils"
)

const (
	requestTimeout = 60 * time.Second
	maxUploadSize  = 10 << 20
)

type contextKey string

const deviceClaimsKey contextKey = "device_claims"

// Handler serves the HTTP API. One instance is shared by every request.
type Handler struct {
	Sessions    *orchestrator.Registry
	DeviceKV    storage.KV
	Payments    orchestrator.PaymentRequester
	FetchMeta   func(ctx context.Context, pageURL string) (*utils.PageMeta, error)
	JWTSecret   string
	AdminAPIKey string
}

// Routes builds the router. The analysis route runs without the request
// timeout since an attempt can take minutes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(utils.LatencyMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/auth/device", h.IssueDeviceToken)
		r.Post("/premium/grant", h.GrantPremium)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Post("/session/analyze", h.AnalyzeSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/app", h.BootApp)

			r.Get("/session", h.GetSession)
			r.Post("/session/capture", h.CaptureImage)
			r.Post("/session/retry", h.RetrySession)
			r.Post("/session/reset", h.ResetSession)
			r.Post("/session/email", h.EmailResults)

			r.Post("/checkout", h.CreateCheckout)
			r.Get("/premium", h.GetPremium)

			r.Route("/history", func(r chi.Router) {
				r.Get("/", h.ListHistory)
				r.Delete("/", h.ClearHistory)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetHistoryItem)
					r.Delete("/", h.DeleteHistoryItem)
					r.Post("/like", h.ToggleHistoryLike)
				})
			})

			r.Route("/saved", func(r chi.Router) {
				r.Get("/", h.ListSaved)
				r.Post("/", h.SaveStyle)
				r.Delete("/", h.ClearSaved)
				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", h.DeleteSavedStyle)
					r.Put("/category", h.UpdateSavedCategory)
					r.Put("/notes", h.UpdateSavedNotes)
				})
			})
		})
	})
	return r
}

// AuthMiddleware requires a valid device token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.claimsFromRequest(r)
		if err != nil {
			utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), deviceClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) claimsFromRequest(r *http.Request) (*utils.DeviceClaims, error) {
	authHeader := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return nil, errors.New("missing bearer token")
	}
	return utils.ValidateDeviceToken(h.JWTSecret, tokenString)
}

// GetDeviceFromContext returns the claims stored by AuthMiddleware.
func GetDeviceFromContext(ctx context.Context) (*utils.DeviceClaims, error) {
	claims, ok := ctx.Value(deviceClaimsKey).(*utils.DeviceClaims)
	if !ok || claims == nil {
		return nil, errors.New("device not found in context")
	}
	return claims, nil
}

func (h *Handler) sessionFor(r *http.Request) (*orchestrator.Session, error) {
	claims, err := GetDeviceFromContext(r.Context())
	if err != nil {
		return nil, err
	}
	return h.Sessions.Get(claims.DeviceID, claims.SessionID), nil
}

func (h *Handler) gateFor(deviceID string) *premium.Gate {
	return premium.NewGate(h.DeviceKV, deviceID)
}
