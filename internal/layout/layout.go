package layout

import (
	"strings"
)

// BBox is a bounding box in image-relative units.
// X and Y locate the top-left corner, all values are in [0,1] and Y grows downward.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the right edge of the box
func (b BBox) Right() float64 {
	return b.X + b.Width
}

// CenterX returns the horizontal center of the box
func (b BBox) CenterX() float64 {
	return b.X + b.Width/2
}

// CenterY returns the vertical center of the box
func (b BBox) CenterY() float64 {
	return b.Y + b.Height/2
}

// Fragment is one piece of recognized text with its location on the image
type Fragment struct {
	Text       string  `json:"text"`
	Box        BBox    `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Column tags a line produced by column splitting
type Column string

const (
	// ColumnNone marks lines of a single-column layout
	ColumnNone Column = ""
	// ColumnDescription marks the left (item description) column
	ColumnDescription Column = "description"
	// ColumnPrice marks the right (price) column
	ColumnPrice Column = "price"
)

// Line is an ordered group of fragments believed to form one visual row,
// or one column segment of a row when the layout has two columns.
type Line struct {
	Row    int    `json:"row"`
	Column Column `json:"column,omitempty"`
	Text   string `json:"text"`
	// Confidence is the mean recognition confidence of the fragments, 1 for text lines
	Confidence float64    `json:"confidence"`
	Fragments  []Fragment `json:"fragments,omitempty"`
}

// LinesFromText builds single-column lines from plain text, one row per non-blank entry.
// It is used when the caller already holds recognized text without geometry.
func LinesFromText(texts ...string) []Line {
	lines := make([]Line, 0, len(texts))
	for _, t := range texts {
		t = collapseSpaces(t)
		if t == "" {
			continue
		}
		lines = append(lines, Line{Row: len(lines), Text: t, Confidence: 1})
	}
	return lines
}

// Texts returns the text of every line in order
func Texts(lines []Line) []string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return texts
}

func newLine(row int, column Column, fragments []Fragment) Line {
	parts := make([]string, 0, len(fragments))
	confidence := 0.0
	for _, f := range fragments {
		parts = append(parts, f.Text)
		confidence += f.Confidence
	}
	if len(fragments) > 0 {
		confidence /= float64(len(fragments))
	}
	return Line{
		Row:        row,
		Column:     column,
		Text:       collapseSpaces(strings.Join(parts, " ")),
		Confidence: confidence,
		Fragments:  fragments,
	}
}

// collapseSpaces trims the string and reduces inner whitespace runs to single spaces
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
