package layout

import (
	"math"
	"sort"
)

// slab is a horizontal range covered by text
type slab struct {
	left  float64
	right float64
}

// detectColumns looks for the widest horizontal gap separating two populated
// bands. It returns the split position and whether a two-column layout was found.
func (r *Reconstructor) detectColumns(fragments []Fragment) (float64, bool) {
	if len(fragments) < 2*r.config.MinColumnFragments {
		return 0, false
	}

	// Project narrow fragments onto the X axis
	var slabs []slab
	for _, f := range fragments {
		if f.Box.Width > r.config.MaxSpanWidth {
			continue
		}
		slabs = append(slabs, slab{left: f.Box.X, right: f.Box.Right()})
	}
	if len(slabs) < 2 {
		return 0, false
	}

	sort.Slice(slabs, func(i, j int) bool {
		return slabs[i].left < slabs[j].left
	})
	merged := mergeSlabs(slabs, r.config.SlabTolerance)

	minSide := int(math.Ceil(r.config.MinColumnShare * float64(len(fragments))))
	if minSide < r.config.MinColumnFragments {
		minSide = r.config.MinColumnFragments
	}

	bestWidth := 0.0
	split := 0.0
	for i := 0; i < len(merged)-1; i++ {
		gapLeft := merged[i].right
		gapRight := merged[i+1].left
		width := gapRight - gapLeft
		if width < r.config.MinGapWidth || width <= bestWidth {
			continue
		}

		// Both bands must hold enough fragments to count as columns
		mid := (gapLeft + gapRight) / 2
		left, right := 0, 0
		for _, f := range fragments {
			if f.Box.CenterX() < mid {
				left++
			} else {
				right++
			}
		}
		if left < minSide || right < minSide {
			continue
		}

		bestWidth = width
		split = mid
	}

	return split, bestWidth > 0
}

// mergeSlabs joins overlapping or nearly touching ranges. Input must be sorted by left edge.
func mergeSlabs(slabs []slab, tolerance float64) []slab {
	if len(slabs) == 0 {
		return nil
	}

	merged := []slab{slabs[0]}
	for i := 1; i < len(slabs); i++ {
		current := slabs[i]
		last := &merged[len(merged)-1]

		if current.left <= last.right+tolerance {
			if current.right > last.right {
				last.right = current.right
			}
		} else {
			merged = append(merged, current)
		}
	}

	return merged
}
