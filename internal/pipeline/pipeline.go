package pipeline

import (
	"log/slog"

	"github.com/zombor/pantry-scan/internal/confidence"
	"github.com/zombor/pantry-scan/internal/extraction"
	"github.com/zombor/pantry-scan/internal/layout"
	"github.com/zombor/pantry-scan/internal/merchant"
)

// Result is the combined output of one pipeline run
type Result struct {
	Lines      []layout.Line       `json:"lines"`
	Match      *merchant.Match     `json:"merchant,omitempty"`
	Receipt    *extraction.Receipt `json:"receipt"`
	Confidence confidence.Result   `json:"confidence"`
}

// Pipeline runs layout reconstruction, merchant detection, extraction and
// scoring in sequence. It keeps no per-run state, so one Pipeline serves
// concurrent callers.
type Pipeline struct {
	reconstructor *layout.Reconstructor
	registry      *merchant.Registry
	detector      *merchant.Detector
	engine        *extraction.Engine
	scorer        *confidence.Scorer
}

// New creates a Pipeline over the registry with default stage settings
func New(registry *merchant.Registry) *Pipeline {
	return &Pipeline{
		reconstructor: layout.NewReconstructor(),
		registry:      registry,
		detector:      merchant.NewDetector(),
		engine:        extraction.NewEngine(registry.Generic()),
		scorer:        confidence.NewScorer(),
	}
}

// NewWithDeps creates a Pipeline with custom stages for testing
func NewWithDeps(registry *merchant.Registry, reconstructor *layout.Reconstructor, detector *merchant.Detector, scorer *confidence.Scorer) *Pipeline {
	return &Pipeline{
		reconstructor: reconstructor,
		registry:      registry,
		detector:      detector,
		engine:        extraction.NewEngine(registry.Generic()),
		scorer:        scorer,
	}
}

// Process turns positioned OCR fragments into a scored receipt
func (p *Pipeline) Process(fragments []layout.Fragment) *Result {
	return p.ProcessLines(p.reconstructor.Reconstruct(fragments))
}

// ProcessLines runs every stage after layout reconstruction on already ordered lines
func (p *Pipeline) ProcessLines(lines []layout.Line) *Result {
	if lines == nil {
		lines = []layout.Line{}
	}

	match := p.detector.Detect(lines, p.registry.Profiles())

	var (
		profile            *merchant.Profile
		merchantConfidence float64
	)
	if match != nil {
		profile = match.Profile
		merchantConfidence = match.Confidence
	}

	receipt := p.engine.Extract(lines, profile)

	texts := layout.Texts(lines)
	score := p.scorer.Score(receipt, len(lines), confidence.NoiseRatio(texts), merchantConfidence)

	slog.Debug("Processed receipt",
		"lines", len(lines),
		"merchant", receipt.Merchant,
		"products", len(receipt.Products),
		"overall", score.Overall,
		"rating", score.Rating,
	)

	return &Result{
		Lines:      lines,
		Match:      match,
		Receipt:    receipt,
		Confidence: score,
	}
}

// Registry returns the merchant registry the pipeline detects against
func (p *Pipeline) Registry() *merchant.Registry {
	return p.registry
}
