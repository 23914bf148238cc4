package ocr

import (
	"image"

	"github.com/disintegration/imaging"
)

// Pass is one image variant recognized independently of the others
type Pass struct {
	Name    string
	Prepare func(image.Image) image.Image
}

// DefaultPasses returns the standard, enhanced contrast and inverted variants
func DefaultPasses() []Pass {
	return []Pass{
		{Name: "standard", Prepare: standard},
		{Name: "enhanced", Prepare: enhanced},
		{Name: "inverted", Prepare: inverted},
	}
}

func standard(img image.Image) image.Image {
	return imaging.Grayscale(img)
}

// enhanced boosts contrast and sharpens faded thermal print
func enhanced(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 30)
	out = imaging.Sharpen(out, 1.5)
	return out
}

// inverted helps with light text on dark backgrounds
func inverted(img image.Image) image.Image {
	return imaging.Invert(imaging.Grayscale(img))
}
