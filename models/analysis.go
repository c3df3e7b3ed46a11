package models

import "math"

// FaceShape is one of the face shape classes returned by the analysis model.
type FaceShape string

const (
	FaceShapeOval    FaceShape = "oval"
	FaceShapeRound   FaceShape = "round"
	FaceShapeSquare  FaceShape = "square"
	FaceShapeOblong  FaceShape = "oblong"
	FaceShapeHeart   FaceShape = "heart"
	FaceShapeDiamond FaceShape = "diamond"
)

// Valid reports whether the shape is a known class.
func (f FaceShape) Valid() bool {
	switch f {
	case FaceShapeOval, FaceShapeRound, FaceShapeSquare, FaceShapeOblong, FaceShapeHeart, FaceShapeDiamond:
		return true
	}
	return false
}

// SkinTone is one of the skin tone classes returned by the analysis model.
type SkinTone string

const (
	SkinToneFair   SkinTone = "fair"
	SkinToneMedium SkinTone = "medium"
	SkinToneTan    SkinTone = "tan"
	SkinToneDark   SkinTone = "dark"
)

// Valid reports whether the tone is a known class.
func (s SkinTone) Valid() bool {
	switch s {
	case SkinToneFair, SkinToneMedium, SkinToneTan, SkinToneDark:
		return true
	}
	return false
}

// Impact describes how a facial feature affects style choices.
type Impact string

const (
	ImpactPositive      Impact = "positive"
	ImpactNeutral       Impact = "neutral"
	ImpactConsideration Impact = "consideration"
)

// Feature is a single observed facial feature.
type Feature struct {
	Name   string `bson:"name" json:"name"`
	Label  string `bson:"label" json:"label"`
	Impact Impact `bson:"impact" json:"impact"`
}

// Recommendation is a ranked hairstyle suggestion.
type Recommendation struct {
	ID       string `bson:"id" json:"id"`
	Name     string `bson:"name" json:"name"`
	Reason   string `bson:"reason" json:"reason"`
	Score    int    `bson:"score" json:"score"`       // 0..100
	Priority int    `bson:"priority" json:"priority"` // 1..N
}

// AvoidStyle is a style the model advises against.
type AvoidStyle struct {
	Name   string `bson:"name" json:"name"`
	Reason string `bson:"reason" json:"reason"`
}

// AnalysisResult is the face analysis returned by the vision model.
// It is treated as immutable once received.
type AnalysisResult struct {
	FaceShape         FaceShape        `bson:"face_shape" json:"faceShape"`
	FaceShapeLabel    string           `bson:"face_shape_label" json:"faceShapeLabel"`
	SkinTone          SkinTone         `bson:"skin_tone" json:"skinTone"`
	SkinToneLabel     string           `bson:"skin_tone_label" json:"skinToneLabel"`
	UpperRatio        int              `bson:"upper_ratio" json:"upperRatio"`
	MiddleRatio       int              `bson:"middle_ratio" json:"middleRatio"`
	LowerRatio        int              `bson:"lower_ratio" json:"lowerRatio"`
	OverallImpression string           `bson:"overall_impression" json:"overallImpression"`
	Features          []Feature        `bson:"features" json:"features"`
	StylingTips       []string         `bson:"styling_tips" json:"stylingTips"`
	Recommendations   []Recommendation `bson:"recommendations" json:"recommendations"`
	AvoidStyles       []AvoidStyle     `bson:"avoid_styles" json:"avoidStyles"`
}

// NormalizeRatios rescales the three facial thirds so they sum to exactly 100.
// Rounding drift is absorbed by the largest third. All-zero input becomes an even split.
func (a *AnalysisResult) NormalizeRatios() {
	upper, middle, lower := clampNonNegative(a.UpperRatio), clampNonNegative(a.MiddleRatio), clampNonNegative(a.LowerRatio)
	total := upper + middle + lower
	if total == 0 {
		a.UpperRatio, a.MiddleRatio, a.LowerRatio = 33, 34, 33
		return
	}
	if total == 100 {
		a.UpperRatio, a.MiddleRatio, a.LowerRatio = upper, middle, lower
		return
	}

	scale := 100 / float64(total)
	ratios := [3]int{
		int(math.Round(float64(upper) * scale)),
		int(math.Round(float64(middle) * scale)),
		int(math.Round(float64(lower) * scale)),
	}
	largest := 0
	for i := range ratios {
		if ratios[i] > ratios[largest] {
			largest = i
		}
	}
	ratios[largest] += 100 - (ratios[0] + ratios[1] + ratios[2])
	a.UpperRatio, a.MiddleRatio, a.LowerRatio = ratios[0], ratios[1], ratios[2]
}

// RecommendationNames returns the recommendation names in order.
func (a *AnalysisResult) RecommendationNames() []string {
	names := make([]string, 0, len(a.Recommendations))
	for _, r := range a.Recommendations {
		names = append(names, r.Name)
	}
	return names
}

// FeatureNames returns the feature names in order.
func (a *AnalysisResult) FeatureNames() []string {
	names := make([]string, 0, len(a.Features))
	for _, f := range a.Features {
		names = append(names, f.Name)
	}
	return names
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
