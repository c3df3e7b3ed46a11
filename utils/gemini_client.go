package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/raushankrgupta/hair-director/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultRetryAfter = 60 * time.Second

// RateLimitError is returned when the model provider throttles the request.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

const analysisPrompt = `
You are a professional hair stylist. Analyze the face in this photo and respond with JSON only, using this shape:
{
  "faceShape": "oval|round|square|oblong|heart|diamond",
  "faceShapeLabel": "short human label",
  "skinTone": "fair|medium|tan|dark",
  "skinToneLabel": "short human label",
  "upperRatio": <percent>, "middleRatio": <percent>, "lowerRatio": <percent>,
  "overallImpression": "two or three sentences",
  "features": [{"name": "...", "label": "...", "impact": "positive|neutral|consideration"}],
  "stylingTips": ["personalized tip", "..."],
  "recommendations": [{"id": "...", "name": "...", "reason": "...", "score": 0-100, "priority": 1}],
  "avoidStyles": [{"name": "...", "reason": "..."}]
}
The three ratios are the upper, middle and lower thirds of the face and must sum to 100.
Return exactly 9 recommendations ordered by priority.
`

// GeminiClient is the analysis and grid-generation collaborator.
type GeminiClient struct {
	client        *genai.Client
	analysisModel string
	imageModel    string
}

// NewGeminiClient creates a Gemini client. Close it on shutdown.
func NewGeminiClient(ctx context.Context, apiKey, analysisModel, imageModel string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, analysisModel: analysisModel, imageModel: imageModel}, nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// AnalyzeFace sends the photo to the vision model and decodes the analysis JSON.
func (g *GeminiClient) AnalyzeFace(ctx context.Context, img InlineImage) (*models.AnalysisResult, error) {
	model := g.client.GenerativeModel(g.analysisModel)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.4)

	resp, err := model.GenerateContent(ctx, genai.Text(analysisPrompt), genai.ImageData(img.Format(), img.Data))
	if err != nil {
		return nil, ClassifyModelError(err)
	}
	text, _, err := firstParts(resp)
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(text)
}

// GenerateStyleGrid asks the image model for a 3x3 grid of the person wearing the
// given styles, left to right and top to bottom in the given order.
func (g *GeminiClient) GenerateStyleGrid(ctx context.Context, img InlineImage, styleNames []string) (InlineImage, error) {
	model := g.client.GenerativeModel(g.imageModel)

	resp, err := model.GenerateContent(ctx, genai.Text(gridPrompt(styleNames)), genai.ImageData(img.Format(), img.Data))
	if err != nil {
		return InlineImage{}, ClassifyModelError(err)
	}
	_, blob, err := firstParts(resp)
	if err != nil {
		return InlineImage{}, err
	}
	if blob == nil {
		return InlineImage{}, fmt.Errorf("model returned no image")
	}
	return InlineImage{MIMEType: blob.MIMEType, Data: blob.Data}, nil
}

func gridPrompt(styleNames []string) string {
	var b strings.Builder
	b.WriteString("Create a single image arranged as a 3x3 grid of the same person from this photo.\n")
	b.WriteString("Keep the face, skin tone and expression identical in every cell; only the hairstyle changes.\n")
	b.WriteString("Fill the cells left to right, top to bottom, with these hairstyles:\n")
	for i, name := range styleNames {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	b.WriteString("Do not add text or labels to the image.")
	return b.String()
}

// firstParts returns the concatenated text and the first image blob of the first candidate.
func firstParts(resp *genai.GenerateContentResponse) (string, *genai.Blob, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil, fmt.Errorf("no content generated")
	}
	var text strings.Builder
	var blob *genai.Blob
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.Blob:
			if blob == nil && strings.HasPrefix(p.MIMEType, "image/") {
				b := p
				blob = &b
			}
		default:
			log.Printf("gemini: ignoring unexpected part type %T", p)
		}
	}
	return text.String(), blob, nil
}

// ParseAnalysis decodes the model's JSON (optionally wrapped in a code fence),
// checks the enums and rescales the facial thirds to sum to 100.
func ParseAnalysis(text string) (*models.AnalysisResult, error) {
	payload := stripCodeFence(text)
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}

	result.FaceShape = models.FaceShape(strings.ToLower(strings.TrimSpace(string(result.FaceShape))))
	if !result.FaceShape.Valid() {
		return nil, fmt.Errorf("unexpected face shape %q", result.FaceShape)
	}
	result.SkinTone = models.SkinTone(strings.ToLower(strings.TrimSpace(string(result.SkinTone))))
	if !result.SkinTone.Valid() {
		return nil, fmt.Errorf("unexpected skin tone %q", result.SkinTone)
	}
	for i := range result.Features {
		switch result.Features[i].Impact {
		case models.ImpactPositive, models.ImpactNeutral, models.ImpactConsideration:
		default:
			result.Features[i].Impact = models.ImpactNeutral
		}
	}
	result.NormalizeRatios()
	return &result, nil
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ClassifyModelError turns provider throttling into a RateLimitError and passes
// everything else through wrapped.
func ClassifyModelError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(gerr.Header.Get("Retry-After")), Err: err}
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "429") || strings.Contains(lower, "quota") || strings.Contains(lower, "resource exhausted") || strings.Contains(lower, "resourceexhausted") {
		return &RateLimitError{RetryAfter: defaultRetryAfter, Err: err}
	}
	return fmt.Errorf("failed to generate content: %w", err)
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}
