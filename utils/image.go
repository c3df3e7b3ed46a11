package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

const ImageJpegQuality = 85

var ErrNotImage = errors.New("file is not an image")

// InlineImage is raw image bytes with their MIME type.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Format returns the short format name Gemini expects ("jpeg", "png").
func (i InlineImage) Format() string {
	return strings.TrimPrefix(i.MIMEType, "image/")
}

// Extension returns the file extension matching the MIME type, without the dot.
func (i InlineImage) Extension() string {
	switch f := i.Format(); f {
	case "jpeg", "pjpeg":
		return "jpg"
	case "svg+xml":
		return "svg"
	case "":
		return "bin"
	default:
		return f
	}
}

// DataURI encodes the image as a base64 data URI.
func (i InlineImage) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

// IsDataURI reports whether s looks like a base64 data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,")
}

// ParseDataURI decodes a base64 data URI. Only image MIME types are accepted.
func ParseDataURI(uri string) (InlineImage, error) {
	if !IsDataURI(uri) {
		return InlineImage{}, fmt.Errorf("not a base64 data URI")
	}
	header, payload, _ := strings.Cut(strings.TrimPrefix(uri, "data:"), ";base64,")
	if !strings.HasPrefix(header, "image/") {
		return InlineImage{}, ErrNotImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return InlineImage{}, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return InlineImage{MIMEType: header, Data: data}, nil
}

// SniffImage validates that data is an image and returns it with a detected MIME type.
func SniffImage(data []byte) (InlineImage, error) {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return InlineImage{}, ErrNotImage
	}
	return InlineImage{MIMEType: mimeType, Data: data}, nil
}

// DownscaleDataURI fits a data-URI image inside maxSide x maxSide and re-encodes it as JPEG.
// Remote URLs and images already within bounds are returned untouched.
func DownscaleDataURI(uri string, maxSide int) (string, error) {
	if !IsDataURI(uri) || maxSide <= 0 {
		return uri, nil
	}
	img, err := ParseDataURI(uri)
	if err != nil {
		return "", err
	}
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() <= maxSide && bounds.Dy() <= maxSide {
		return uri, nil
	}

	resized := imaging.Fit(decoded, maxSide, maxSide, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(ImageJpegQuality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return InlineImage{MIMEType: "image/jpeg", Data: buf.Bytes()}.DataURI(), nil
}
