//go:build !ocr

package ocr

import (
	"context"
	"image"

	"github.com/zombor/pantry-scan/internal/layout"
)

// Tesseract is a stub recognizer used when the "ocr" build tag is not set
type Tesseract struct{}

// NewTesseract returns ErrOCRNotEnabled.
// To enable OCR, rebuild with: go build -tags ocr
func NewTesseract(language string) (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op for the stub recognizer.
// It is safe to call on a nil recognizer.
func (t *Tesseract) Close() error {
	return nil
}

// Recognize returns ErrOCRNotEnabled
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]layout.Fragment, error) {
	return nil, ErrOCRNotEnabled
}
