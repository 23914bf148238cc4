// Package ocr connects image input to the receipt pipeline. It decodes uploaded
// files, prepares image variants and runs a text Recognizer over them.
//
// The Tesseract recognizer needs the "ocr" build tag and a system Tesseract
// installation:
//
//	go build -tags ocr ./cmd/pantry-scan
package ocr

import (
	"context"
	"errors"
	"image"

	"github.com/zombor/pantry-scan/internal/layout"
)

// ErrOCRNotEnabled is returned by the Tesseract recognizer when OCR support
// was not compiled in. Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// ErrAllPassesFailed is returned when no recognition pass produced a result
var ErrAllPassesFailed = errors.New("all OCR passes failed")

// Recognizer turns an image into positioned text fragments. Bounding boxes
// are normalized to the image size with the origin at the top left.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]layout.Fragment, error)
}

// normalizeBox converts a pixel rectangle into image-relative units
func normalizeBox(r, bounds image.Rectangle) layout.BBox {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if w == 0 || h == 0 {
		return layout.BBox{}
	}
	return layout.BBox{
		X:      float64(r.Min.X-bounds.Min.X) / w,
		Y:      float64(r.Min.Y-bounds.Min.Y) / h,
		Width:  float64(r.Dx()) / w,
		Height: float64(r.Dy()) / h,
	}
}
