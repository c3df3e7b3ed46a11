package store

import (
	"context"
	"fmt"
	"log"

	"github.com/raushankrgupta/hair-director/models"
	"github.com/raushankrgupta/hair-director/storage"
	"github.com/raushankrgupta/hair-director/utils"
)

// History returns the history collection, most recent first.
func (l *Local) History(ctx context.Context) []models.HistoryItem {
	items := loadList[models.HistoryItem](ctx, l, storage.KeyHistory)
	if items == nil {
		return []models.HistoryItem{}
	}
	return items
}

// GetHistoryItem returns a single item.
func (l *Local) GetHistoryItem(ctx context.Context, id string) (models.HistoryItem, error) {
	for _, item := range l.History(ctx) {
		if item.ID == id {
			return item, nil
		}
	}
	return models.HistoryItem{}, ErrNotFound
}

// AddHistoryItem assigns id and date, downsizes the images, prepends the item and
// trims the collection to HistoryMaxItems. The returned item is what was (or would
// have been) stored; stored is false when the write failed, which is logged only.
func (l *Local) AddHistoryItem(ctx context.Context, item models.HistoryItem) (models.HistoryItem, bool) {
	now := l.now()
	item.ID = fmt.Sprintf("%d", now.UnixNano())
	item.Date = now

	if l.opts.Archive != nil {
		item.OriginalImageKey = l.archive(ctx, item.ID, "original", item.OriginalImage)
		item.ResultImageKey = l.archive(ctx, item.ID, "result", item.ResultImage)
	}

	item.Thumbnail = l.downscale(item.ResultImage, l.opts.ThumbnailMaxSide)
	item.OriginalImage = l.downscale(item.OriginalImage, l.opts.ImageMaxSide)
	item.ResultImage = l.downscale(item.ResultImage, l.opts.ImageMaxSide)

	items := append([]models.HistoryItem{item}, l.History(ctx)...)
	if limit := l.opts.HistoryMaxItems; limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	stored := saveList(ctx, l, storage.KeyHistory, items)
	if stored {
		log.Printf("store: added history item %s for %s (%d retained)", item.ID, l.scope, len(items))
	}
	return item, stored
}

// DeleteHistoryItem removes one item.
func (l *Local) DeleteHistoryItem(ctx context.Context, id string) error {
	items := l.History(ctx)
	kept := items[:0]
	found := false
	for _, item := range items {
		if item.ID == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return ErrNotFound
	}
	saveList(ctx, l, storage.KeyHistory, kept)
	return nil
}

// ClearHistory removes the whole collection.
func (l *Local) ClearHistory(ctx context.Context) {
	l.remove(ctx, storage.KeyHistory)
}

// ToggleHistoryLike flips the liked flag and returns the new value. Order is untouched.
func (l *Local) ToggleHistoryLike(ctx context.Context, id string) (bool, error) {
	items := l.History(ctx)
	for i := range items {
		if items[i].ID == id {
			items[i].Liked = !items[i].Liked
			saveList(ctx, l, storage.KeyHistory, items)
			return items[i].Liked, nil
		}
	}
	return false, ErrNotFound
}

// HistoryDetail is a history item prepared for the detail view.
type HistoryDetail struct {
	models.HistoryItem
	Analysis         *models.AnalysisResult `json:"analysis"`
	Legacy           bool                   `json:"legacy"`
	OriginalImageURL string                 `json:"originalImageUrl,omitempty"`
	ResultImageURL   string                 `json:"resultImageUrl,omitempty"`
}

// Detail resolves the analysis for display. Items stored before the full result was
// kept are rebuilt from the denormalized summary and flagged as legacy.
func (l *Local) Detail(ctx context.Context, item models.HistoryItem) HistoryDetail {
	detail := HistoryDetail{HistoryItem: item, Analysis: item.FullAnalysisResult}
	if detail.Analysis == nil {
		detail.Legacy = true
		features := make([]models.Feature, 0, len(item.FaceAnalysis.Features))
		for _, name := range item.FaceAnalysis.Features {
			features = append(features, models.Feature{Name: name, Label: name, Impact: models.ImpactNeutral})
		}
		recs := make([]models.Recommendation, 0, len(item.RecommendedStyles))
		for i, name := range item.RecommendedStyles {
			recs = append(recs, models.Recommendation{ID: fmt.Sprintf("legacy-%d", i+1), Name: name, Priority: i + 1})
		}
		detail.Analysis = &models.AnalysisResult{
			FaceShape:       item.FaceAnalysis.FaceShape,
			FaceShapeLabel:  string(item.FaceAnalysis.FaceShape),
			UpperRatio:      item.FaceAnalysis.UpperRatio,
			MiddleRatio:     item.FaceAnalysis.MiddleRatio,
			LowerRatio:      item.FaceAnalysis.LowerRatio,
			Features:        features,
			Recommendations: recs,
		}
	}

	if l.opts.Archive != nil {
		detail.OriginalImageURL = l.archiveURL(ctx, item.OriginalImageKey)
		detail.ResultImageURL = l.archiveURL(ctx, item.ResultImageKey)
	}
	return detail
}

func (l *Local) downscale(uri string, maxSide int) string {
	if uri == "" {
		return uri
	}
	out, err := utils.DownscaleDataURI(uri, maxSide)
	if err != nil {
		log.Printf("store: keeping original image, downscale failed: %v", err)
		return uri
	}
	return out
}

func (l *Local) archive(ctx context.Context, id, kind, dataURI string) string {
	img, err := utils.ParseDataURI(dataURI)
	if err != nil {
		return ""
	}
	key := fmt.Sprintf("history/%s/%s_%s.%s", l.scope, id, kind, img.Extension())
	if err := l.opts.Archive.Put(ctx, key, dataURI); err != nil {
		log.Printf("store: failed to archive %s image for %s: %v", kind, id, err)
		return ""
	}
	return key
}

func (l *Local) archiveURL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	url, err := l.opts.Archive.URL(ctx, key)
	if err != nil {
		log.Printf("store: failed to presign %s: %v", key, err)
		return ""
	}
	return url
}
