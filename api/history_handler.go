package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/store"
	"github.com/raushankrgupta/hair-director/utils"
)

// HistoryResponse represents the response structure for the history API
type HistoryResponse struct {
	Items       []models.HistoryItem `json:"items"`
	Total       int                  `json:"total"`
	CurrentPage int                  `json:"current_page"`
	TotalPages  int                  `json:"total_pages"`
}

// ListHistory returns the device history, most recent first.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse Pagination Parameters
	page := 1
	limit := 10
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	items := sess.Store().History(r.Context())
	total := len(items)
	skip := (page - 1) * limit
	if skip > total {
		skip = total
	}
	end := skip + limit
	if end > total {
		end = total
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	utils.RespondJSON(w, http.StatusOK, HistoryResponse{
		Items:       items[skip:end],
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages,
	})
}

// GetHistoryItem returns one item prepared for the detail view.
func (h *Handler) GetHistoryItem(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	item, err := sess.Store().GetHistoryItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Store().Detail(r.Context(), item))
}

// ToggleHistoryLike flips the liked flag without reordering.
func (h *Handler) ToggleHistoryLike(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	liked, err := sess.Store().ToggleHistoryLike(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// DeleteHistoryItem removes one item.
func (h *Handler) DeleteHistoryItem(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	if err := sess.Store().DeleteHistoryItem(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("History item %s deleted", id)})
}

// ClearHistory removes every item.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sess.Store().ClearHistory(r.Context())
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, nil, "Item not found", http.StatusNotFound)
		return
	}
	utils.RespondError(w, nil, err.Error(), http.StatusBadRequest)
}
