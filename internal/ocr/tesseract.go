//go:build ocr

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/pantry-scan/internal/layout"
)

// Tesseract recognizes words with the Tesseract engine
type Tesseract struct {
	languages []string
}

// NewTesseract creates a recognizer for the "+" separated languages (e.g. "deu+eng")
func NewTesseract(language string) (*Tesseract, error) {
	t := &Tesseract{languages: strings.Split(language, "+")}

	// Fail at startup if the language data is missing
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting OCR language: %w", err)
	}
	return t, nil
}

// Close releases OCR resources
func (t *Tesseract) Close() error {
	return nil
}

// Recognize returns one fragment per recognized word. Each call uses its own
// Tesseract client because clients are not safe for concurrent use.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]layout.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Boxes are relative to the encoded PNG, which starts at the origin
	bounds := img.Bounds()
	fragments := make([]layout.Fragment, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		fragments = append(fragments, layout.Fragment{
			Text:       text,
			Box:        normalizeBox(b.Box.Add(bounds.Min), bounds),
			Confidence: b.Confidence / 100,
		})
	}
	return fragments, nil
}
