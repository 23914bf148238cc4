package layout

import (
	"log/slog"
	"math"
	"sort"
	"strings"
)

// Config holds the tuning parameters for layout reconstruction
type Config struct {
	// RowTolerance is the fraction of the median fragment height below which
	// two vertical centers are considered to be on the same row
	RowTolerance float64

	// MinGapWidth is the narrowest horizontal gap that can separate two columns
	MinGapWidth float64

	// MinColumnShare is the minimum fraction of fragments required on each side of a column gap
	MinColumnShare float64

	// MinColumnFragments is the minimum absolute number of fragments on each side of a column gap
	MinColumnFragments int

	// MaxSpanWidth excludes wide fragments (centered headers, full-width rules)
	// from gap detection so they cannot bridge two columns
	MaxSpanWidth float64

	// SlabTolerance merges horizontal ranges closer than this distance
	SlabTolerance float64
}

// DefaultConfig returns sensible defaults for photographed receipts
func DefaultConfig() Config {
	return Config{
		RowTolerance:       0.5,
		MinGapWidth:        0.04,
		MinColumnShare:     0.2,
		MinColumnFragments: 2,
		MaxSpanWidth:       0.6,
		SlabTolerance:      0.01,
	}
}

// Reconstructor turns unordered positioned fragments into ordered lines
type Reconstructor struct {
	config Config
}

// NewReconstructor creates a Reconstructor with default configuration
func NewReconstructor() *Reconstructor {
	return NewReconstructorWithConfig(DefaultConfig())
}

// NewReconstructorWithConfig creates a Reconstructor with custom configuration
func NewReconstructorWithConfig(config Config) *Reconstructor {
	return &Reconstructor{config: config}
}

// Reconstruct orders fragments into lines top-to-bottom. When a two-column
// layout is detected each row yields one line per populated column.
// It never fails: degenerate input yields an empty or row-per-fragment result.
func (r *Reconstructor) Reconstruct(fragments []Fragment) []Line {
	usable := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		usable = append(usable, f)
	}
	if len(usable) == 0 {
		return nil
	}

	split, twoColumns := r.detectColumns(usable)
	rows := r.groupRows(usable)

	lines := make([]Line, 0, len(rows))
	for i, row := range rows {
		if !twoColumns {
			lines = append(lines, newLine(i, ColumnNone, row))
			continue
		}

		var description, price []Fragment
		for _, f := range row {
			if f.Box.CenterX() < split {
				description = append(description, f)
			} else {
				price = append(price, f)
			}
		}
		if len(description) > 0 {
			lines = append(lines, newLine(i, ColumnDescription, description))
		}
		if len(price) > 0 {
			lines = append(lines, newLine(i, ColumnPrice, price))
		}
	}

	slog.Debug("Reconstructed layout",
		"fragments", len(usable),
		"rows", len(rows),
		"two_columns", twoColumns,
		"lines", len(lines),
	)
	return lines
}

// groupRows clusters fragments into rows using a threshold derived from the
// median fragment height, then orders each row left to right
func (r *Reconstructor) groupRows(fragments []Fragment) [][]Fragment {
	threshold := r.config.RowTolerance * medianHeight(fragments)

	// Sort by vertical center, ties broken by horizontal position
	sorted := make([]Fragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].Box.CenterY(), sorted[j].Box.CenterY()
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Box.X < sorted[j].Box.X
	})

	var rows [][]Fragment
	var current []Fragment
	var sumY float64

	for _, f := range sorted {
		if len(current) > 0 {
			// Compare against the mean center of the row built so far
			meanY := sumY / float64(len(current))
			if math.Abs(f.Box.CenterY()-meanY) < threshold {
				current = append(current, f)
				sumY += f.Box.CenterY()
				continue
			}
			rows = append(rows, sortByX(current))
		}
		current = []Fragment{f}
		sumY = f.Box.CenterY()
	}
	if len(current) > 0 {
		rows = append(rows, sortByX(current))
	}

	return rows
}

func sortByX(fragments []Fragment) []Fragment {
	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Box.X < fragments[j].Box.X
	})
	return fragments
}

func medianHeight(fragments []Fragment) float64 {
	heights := make([]float64, len(fragments))
	for i, f := range fragments {
		heights[i] = f.Box.Height
	}
	sort.Float64s(heights)

	n := len(heights)
	if n%2 == 1 {
		return heights[n/2]
	}
	return (heights[n/2-1] + heights[n/2]) / 2
}
