package ocr

import (
	"image"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// ReadBarcode looks for a one-dimensional barcode such as the return or
// receipt number printed below the total. It reports false when none is found.
func ReadBarcode(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		slog.Debug("Failed to binarize image for barcode", "error", err)
		return "", false
	}

	readers := []gozxing.Reader{
		oned.NewCode128Reader(),
		oned.NewEAN13Reader(),
		oned.NewITFReader(),
		oned.NewCode39Reader(),
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	for _, reader := range readers {
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			continue
		}
		if text := result.GetText(); text != "" {
			slog.Debug("Found barcode", "format", result.GetBarcodeFormat().String(), "text", text)
			return text, true
		}
	}
	return "", false
}
