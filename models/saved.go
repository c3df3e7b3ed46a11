package models

import (
	"fmt"
	"strings"
	"time"
)

// SavedStyleType describes where a bookmark came from.
type SavedStyleType string

const (
	SavedTypeSimulation SavedStyleType = "simulation"
	SavedTypeVideo      SavedStyleType = "video"
	SavedTypeBlueprint  SavedStyleType = "blueprint"
)

// Valid reports whether t is a known bookmark type.
func (t SavedStyleType) Valid() bool {
	switch t {
	case SavedTypeSimulation, SavedTypeVideo, SavedTypeBlueprint:
		return true
	}
	return false
}

// Category groups saved styles. CategoryAll only exists as a list filter.
type Category string

const (
	CategoryAll   Category = "all"
	CategoryCut   Category = "cut"
	CategoryPerm  Category = "perm"
	CategoryColor Category = "color"
)

// ParseCategory accepts a storable category (cut, perm, color).
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryCut, CategoryPerm, CategoryColor:
		return c, nil
	}
	return "", fmt.Errorf("invalid category %q", raw)
}

// ParseCategoryFilter accepts a storable category or "all". Empty input means "all".
func ParseCategoryFilter(raw string) (Category, error) {
	if strings.TrimSpace(raw) == "" {
		return CategoryAll, nil
	}
	if Category(strings.ToLower(strings.TrimSpace(raw))) == CategoryAll {
		return CategoryAll, nil
	}
	return ParseCategory(raw)
}

// SavedStyle is a user bookmark of a single style
type SavedStyle struct {
	ID        string         `bson:"id" json:"id"`
	SavedDate time.Time      `bson:"saved_date" json:"savedDate"`
	Type      SavedStyleType `bson:"type" json:"type"`
	Category  Category       `bson:"category" json:"category"`
	Title     string         `bson:"title" json:"title"`
	Thumbnail string         `bson:"thumbnail" json:"thumbnail"` // data URI or remote URL
	SourceURL string         `bson:"source_url,omitempty" json:"sourceUrl,omitempty"`
	VideoID   string         `bson:"video_id,omitempty" json:"videoId,omitempty"`
	Notes     string         `bson:"notes,omitempty" json:"notes,omitempty"`
	IsPro     bool           `bson:"is_pro,omitempty" json:"isPro,omitempty"`
}
