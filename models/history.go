package models

import "time"

// FaceAnalysisSummary is the denormalized subset of an AnalysisResult kept on every
// history item, including items recorded before the full result was stored.
type FaceAnalysisSummary struct {
	FaceShape   FaceShape `bson:"face_shape" json:"faceShape"`
	UpperRatio  int       `bson:"upper_ratio" json:"upperRatio"`
	MiddleRatio int       `bson:"middle_ratio" json:"middleRatio"`
	LowerRatio  int       `bson:"lower_ratio" json:"lowerRatio"`
	Features    []string  `bson:"features" json:"features"`
}

// HistoryItem represents one completed analysis session
type HistoryItem struct {
	ID                 string              `bson:"id" json:"id"`
	Date               time.Time           `bson:"date" json:"date"`
	OriginalImage      string              `bson:"original_image" json:"originalImage"` // data URI
	ResultImage        string              `bson:"result_image" json:"resultImage"`     // data URI
	Thumbnail          string              `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	OriginalImageKey   string              `bson:"original_image_key,omitempty" json:"originalImageKey,omitempty"` // S3 key of the full-size copy
	ResultImageKey     string              `bson:"result_image_key,omitempty" json:"resultImageKey,omitempty"`
	FaceAnalysis       FaceAnalysisSummary `bson:"face_analysis" json:"faceAnalysis"`
	FullAnalysisResult *AnalysisResult     `bson:"full_analysis_result,omitempty" json:"fullAnalysisResult,omitempty"`
	RecommendedStyles  []string            `bson:"recommended_styles" json:"recommendedStyles"`
	Liked              bool                `bson:"liked" json:"liked"`
}

// SummarizeAnalysis builds the denormalized summary stored alongside a history item.
func SummarizeAnalysis(a *AnalysisResult) FaceAnalysisSummary {
	if a == nil {
		return FaceAnalysisSummary{}
	}
	return FaceAnalysisSummary{
		FaceShape:   a.FaceShape,
		UpperRatio:  a.UpperRatio,
		MiddleRatio: a.MiddleRatio,
		LowerRatio:  a.LowerRatio,
		Features:    a.FeatureNames(),
	}
}
