package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/pantry-scan/internal/layout"
)

// PassResult is the output of the winning recognition pass
type PassResult struct {
	Pass      string            `json:"pass"`
	Fragments []layout.Fragment `json:"fragments"`
}

// MultiPass recognizes several variants of one image concurrently and keeps
// the pass that recognized the most text
type MultiPass struct {
	recognizer Recognizer
	passes     []Pass
}

// NewMultiPass creates a MultiPass; without passes it uses DefaultPasses
func NewMultiPass(recognizer Recognizer, passes ...Pass) *MultiPass {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	return &MultiPass{recognizer: recognizer, passes: passes}
}

// Run recognizes every pass and returns the one with the longest text. The
// earlier pass wins ties. A failed pass is logged and skipped; Run only fails
// when every pass failed.
func (m *MultiPass) Run(ctx context.Context, img image.Image) (*PassResult, error) {
	fragments := make([][]layout.Fragment, len(m.passes))
	errs := make([]error, len(m.passes))

	var g errgroup.Group
	g.SetLimit(len(m.passes))
	for i, pass := range m.passes {
		g.Go(func() error {
			prepared := img
			if pass.Prepare != nil {
				prepared = pass.Prepare(img)
			}
			result, err := m.recognizer.Recognize(ctx, prepared)
			if err != nil {
				// Other passes keep running
				errs[i] = fmt.Errorf("pass %s: %w", pass.Name, err)
				slog.Warn("OCR pass failed", "pass", pass.Name, "error", err)
				return nil
			}
			fragments[i] = result
			return nil
		})
	}
	_ = g.Wait()

	best := -1
	bestLength := -1
	for i := range m.passes {
		if errs[i] != nil {
			continue
		}
		length := textLength(fragments[i])
		slog.Debug("OCR pass finished", "pass", m.passes[i].Name, "fragments", len(fragments[i]), "text_length", length)
		if length > bestLength {
			best, bestLength = i, length
		}
	}

	if best < 0 {
		return nil, errors.Join(append([]error{ErrAllPassesFailed}, errs...)...)
	}

	return &PassResult{Pass: m.passes[best].Name, Fragments: fragments[best]}, nil
}

// textLength counts the recognized characters of a pass
func textLength(fragments []layout.Fragment) int {
	n := 0
	for _, f := range fragments {
		n += utf8.RuneCountInString(strings.TrimSpace(f.Text))
	}
	return n
}
