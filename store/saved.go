package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/storage"
)

// SavedStyles returns all bookmarks, most recent first.
func (l *Local) SavedStyles(ctx context.Context) []models.SavedStyle {
	items := loadList[models.SavedStyle](ctx, l, storage.KeySaved)
	if items == nil {
		return []models.SavedStyle{}
	}
	return items
}

// FilterSaved returns bookmarks in category; models.CategoryAll returns everything.
func (l *Local) FilterSaved(ctx context.Context, category models.Category) []models.SavedStyle {
	items := l.SavedStyles(ctx)
	if category == models.CategoryAll {
		return items
	}
	filtered := []models.SavedStyle{}
	for _, item := range items {
		if item.Category == category {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// SaveStyle validates and stores a new bookmark. Type defaults to simulation and
// category to cut. A failed write is logged only.
func (l *Local) SaveStyle(ctx context.Context, style models.SavedStyle) (models.SavedStyle, error) {
	style.Title = strings.TrimSpace(style.Title)
	if style.Title == "" {
		return models.SavedStyle{}, fmt.Errorf("title is required")
	}
	if style.Type == "" {
		style.Type = models.SavedTypeSimulation
	}
	if !style.Type.Valid() {
		return models.SavedStyle{}, fmt.Errorf("invalid type %q", style.Type)
	}
	if style.Category == "" {
		style.Category = models.CategoryCut
	}
	category, err := models.ParseCategory(string(style.Category))
	if err != nil {
		return models.SavedStyle{}, err
	}
	style.Category = category

	style.ID = uuid.NewString()
	style.SavedDate = l.now()
	style.Thumbnail = l.downscale(style.Thumbnail, l.opts.ThumbnailMaxSide)

	items := append([]models.SavedStyle{style}, l.SavedStyles(ctx)...)
	if limit := l.opts.SavedMaxItems; limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	saveList(ctx, l, storage.KeySaved, items)
	return style, nil
}

// DeleteSavedStyle removes one bookmark.
func (l *Local) DeleteSavedStyle(ctx context.Context, id string) error {
	items := l.SavedStyles(ctx)
	for i := range items {
		if items[i].ID == id {
			items = append(items[:i], items[i+1:]...)
			saveList(ctx, l, storage.KeySaved, items)
			return nil
		}
	}
	return ErrNotFound
}

// UpdateSavedStyleCategory moves a bookmark to cut, perm or color.
func (l *Local) UpdateSavedStyleCategory(ctx context.Context, id string, category models.Category) (models.SavedStyle, error) {
	parsed, err := models.ParseCategory(string(category))
	if err != nil {
		return models.SavedStyle{}, err
	}
	return l.updateSaved(ctx, id, func(s *models.SavedStyle) { s.Category = parsed })
}

// UpdateSavedStyleNotes replaces the free-text notes of a bookmark.
func (l *Local) UpdateSavedStyleNotes(ctx context.Context, id, notes string) (models.SavedStyle, error) {
	return l.updateSaved(ctx, id, func(s *models.SavedStyle) { s.Notes = notes })
}

// ClearSaved removes every bookmark.
func (l *Local) ClearSaved(ctx context.Context) {
	l.remove(ctx, storage.KeySaved)
}

func (l *Local) updateSaved(ctx context.Context, id string, mutate func(*models.SavedStyle)) (models.SavedStyle, error) {
	items := l.SavedStyles(ctx)
	for i := range items {
		if items[i].ID == id {
			mutate(&items[i])
			saveList(ctx, l, storage.KeySaved, items)
			return items[i], nil
		}
	}
	return models.SavedStyle{}, ErrNotFound
}
