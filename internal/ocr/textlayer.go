package ocr

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/zombor/pantry-scan/internal/layout"
)

// TextLayerPass names the result of reading a PDF's embedded text
const TextLayerPass = "text_layer"

const (
	// glyphs further apart than this share of the font size start a new word
	wordGapRatio = 0.25
	// baselines further apart than this share of the font size start a new line
	baselineRatio = 0.3
)

// TextLayer reads the words of the first page of a PDF that carries a text
// layer. Digital receipts need no OCR; scanned PDFs yield no fragments.
func TextLayer(data []byte) (fragments []layout.Fragment, err error) {
	// The PDF reader panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			fragments, err = nil, fmt.Errorf("reading PDF text layer: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	if reader.NumPage() == 0 {
		return nil, nil
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return nil, nil
	}
	return glyphWords(page.Content().Text), nil
}

// word is a run of glyphs in PDF user space, Y growing upward
type word struct {
	text     strings.Builder
	left     float64
	right    float64
	baseline float64
	size     float64
}

// glyphWords joins positioned glyphs into words and normalizes their boxes to
// the text area with the origin at the top left
func glyphWords(glyphs []pdf.Text) []layout.Fragment {
	var (
		words   []*word
		current *word
	)
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			current = nil
			continue
		}

		size := g.FontSize
		if size <= 0 {
			size = 1
		}
		if current != nil &&
			math.Abs(g.Y-current.baseline) <= size*baselineRatio &&
			g.X-current.right <= size*wordGapRatio &&
			g.X >= current.left {
			current.text.WriteString(g.S)
			current.right = math.Max(current.right, g.X+g.W)
			current.size = math.Max(current.size, size)
			continue
		}

		current = &word{left: g.X, right: g.X + g.W, baseline: g.Y, size: size}
		current.text.WriteString(g.S)
		words = append(words, current)
	}
	if len(words) == 0 {
		return nil
	}

	left, right := math.Inf(1), math.Inf(-1)
	top, bottom := math.Inf(-1), math.Inf(1)
	for _, w := range words {
		left = math.Min(left, w.left)
		right = math.Max(right, w.right)
		top = math.Max(top, w.baseline+w.size)
		bottom = math.Min(bottom, w.baseline)
	}
	width, height := right-left, top-bottom
	if width <= 0 || height <= 0 {
		return nil
	}

	fragments := make([]layout.Fragment, 0, len(words))
	for _, w := range words {
		text := strings.TrimFunc(w.text.String(), unicode.IsSpace)
		if text == "" {
			continue
		}
		fragments = append(fragments, layout.Fragment{
			Text: text,
			Box: layout.BBox{
				X:      (w.left - left) / width,
				Y:      (top - (w.baseline + w.size)) / height,
				Width:  (w.right - w.left) / width,
				Height: w.size / height,
			},
			Confidence: 1,
		})
	}
	return fragments
}
