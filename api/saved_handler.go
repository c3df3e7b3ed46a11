package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/utils"
)

// SavedResponse is the filtered bookmark list
type SavedResponse struct {
	Category models.Category     `json:"category"`
	Items    []models.SavedStyle `json:"items"`
}

// CategoryRequest reassigns a bookmark
type CategoryRequest struct {
	Category string `json:"category"`
}

// NotesRequest replaces a bookmark's notes
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ListSaved returns bookmarks, filtered by ?category= (cut, perm, color or all).
func (h *Handler) ListSaved(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	category, err := models.ParseCategoryFilter(r.URL.Query().Get("category"))
	if err != nil {
		utils.RespondError(w, nil, err.Error(), http.StatusBadRequest)
		return
	}
	utils.RespondJSON(w, http.StatusOK, SavedResponse{
		Category: category,
		Items:    sess.Store().FilterSaved(r.Context(), category),
	})
}

// SaveStyle bookmarks a style. Video bookmarks without a title or thumbnail
// are completed from the linked page.
func (h *Handler) SaveStyle(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Save Style API]")

	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var style models.SavedStyle
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := json.NewDecoder(r.Body).Decode(&style); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if style.Type == models.SavedTypeVideo && style.SourceURL != "" {
		if style.VideoID == "" {
			style.VideoID = utils.YouTubeVideoID(style.SourceURL)
		}
		if (style.Title == "" || style.Thumbnail == "") && h.FetchMeta != nil {
			meta, err := h.FetchMeta(r.Context(), style.SourceURL)
			if err != nil {
				utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Failed to fetch video metadata: %v", err))
			} else {
				utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Fetched metadata for %s", meta.URL))
				if style.Title == "" {
					style.Title = meta.Title
				}
				if style.Thumbnail == "" {
					style.Thumbnail = meta.Thumbnail
				}
				if style.VideoID == "" {
					style.VideoID = meta.VideoID
				}
			}
		}
	}

	saved, err := sess.Store().SaveStyle(r.Context(), style)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, err.Error(), http.StatusBadRequest)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Saved %s style %s", saved.Type, saved.ID))
	utils.RespondJSON(w, http.StatusCreated, saved)
}

// UpdateSavedCategory moves a bookmark to cut, perm or color.
func (h *Handler) UpdateSavedCategory(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, nil, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	saved, err := sess.Store().UpdateSavedStyleCategory(r.Context(), chi.URLParam(r, "id"), models.Category(req.Category))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

// UpdateSavedNotes replaces a bookmark's notes.
func (h *Handler) UpdateSavedNotes(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, nil, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	saved, err := sess.Store().UpdateSavedStyleNotes(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

// DeleteSavedStyle removes one bookmark.
func (h *Handler) DeleteSavedStyle(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	if err := sess.Store().DeleteSavedStyle(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Saved style %s deleted", id)})
}

// ClearSaved removes every bookmark.
func (h *Handler) ClearSaved(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFor(r)
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sess.Store().ClearSaved(r.Context())
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Saved styles cleared"})
}
