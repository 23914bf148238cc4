package merchant

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/zombor/pantry-scan/internal/layout"
)

// Signal weights and the acceptance threshold are fixed
const (
	NameWeight         = 0.50
	StructureWeight    = 0.30
	FooterWeight       = 0.20
	CandidateThreshold = 0.30
)

// Signals is the per-signal breakdown of a detection score
type Signals struct {
	Name      float64 `json:"name"`
	Structure float64 `json:"structure"`
	Pattern   float64 `json:"pattern"`
}

// Match is the result of scoring one profile against a receipt
type Match struct {
	Profile    *Profile `json:"-"`
	Merchant   string   `json:"merchant"`
	Confidence float64  `json:"confidence"`
	Signals    Signals  `json:"signals"`
}

// DetectorConfig holds the tunable thresholds of the structure and footer signals
type DetectorConfig struct {
	// StructureLow and StructureHigh are the marker counts above which the
	// structure signal reaches its intermediate and full tier
	StructureLow  int
	StructureHigh int

	// FooterWindow is the minimum number of trailing lines scanned for footer keywords
	FooterWindow int

	// FooterKeywordScore is added per matched footer keyword
	FooterKeywordScore float64

	Confusions ConfusionTable
}

// DefaultDetectorConfig returns the default detector tuning
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		StructureLow:       1,
		StructureHigh:      4,
		FooterWindow:       8,
		FooterKeywordScore: 0.35,
		Confusions:         DefaultConfusions(),
	}
}

// Detector scores merchant profiles against reconstructed receipt lines
type Detector struct {
	config DetectorConfig

	mu       sync.RWMutex
	matchers map[*Profile][]variantMatcher
}

// NewDetector creates a Detector with default configuration
func NewDetector() *Detector {
	return NewDetectorWithConfig(DefaultDetectorConfig())
}

// NewDetectorWithConfig creates a Detector with custom configuration
func NewDetectorWithConfig(config DetectorConfig) *Detector {
	return &Detector{
		config:   config,
		matchers: make(map[*Profile][]variantMatcher),
	}
}

// Detect returns the best candidate profile, or nil when no profile scores
// above CandidateThreshold. Ties go to the profile listed first.
func (d *Detector) Detect(lines []layout.Line, profiles []*Profile) *Match {
	matches := d.ScoreAll(lines, profiles)
	best := selectBest(matches)
	if best == nil {
		slog.Debug("No merchant profile above threshold", "profiles", len(profiles))
		return nil
	}
	slog.Debug("Detected merchant", "merchant", best.Merchant, "confidence", best.Confidence)
	return best
}

// ScoreAll scores every profile and returns the matches in profile order
func (d *Detector) ScoreAll(lines []layout.Line, profiles []*Profile) []Match {
	matches := make([]Match, 0, len(profiles))
	for _, p := range profiles {
		m := d.Score(lines, p)
		slog.Debug("Scored merchant profile",
			"merchant", p.Name,
			"confidence", m.Confidence,
			"name", m.Signals.Name,
			"structure", m.Signals.Structure,
			"pattern", m.Signals.Pattern,
		)
		matches = append(matches, m)
	}
	return matches
}

// Score computes the weighted detection score of a single profile
func (d *Detector) Score(lines []layout.Line, p *Profile) Match {
	signals := Signals{
		Name:      d.nameSignal(lines, p),
		Structure: d.structureSignal(lines, p),
		Pattern:   d.footerSignal(lines, p),
	}
	return Match{
		Profile:    p,
		Merchant:   p.Name,
		Confidence: NameWeight*signals.Name + StructureWeight*signals.Structure + FooterWeight*signals.Pattern,
		Signals:    signals,
	}
}

// selectBest picks the highest scoring candidate. Only strictly greater
// scores replace the current best, which keeps the first registered on ties.
func selectBest(matches []Match) *Match {
	var best *Match
	for i := range matches {
		m := matches[i]
		if m.Confidence <= CandidateThreshold {
			continue
		}
		if best == nil || m.Confidence > best.Confidence {
			best = &m
		}
	}
	return best
}

// variantMatcher holds the compiled expressions for one name variant
type variantMatcher struct {
	words   int
	partial *regexp.Regexp // leading brand token as a whole word, nil if too short or generic
	full    *regexp.Regexp // all tokens in sequence as whole words
	inner   *regexp.Regexp // all tokens in sequence anywhere
}

// minPartialToken keeps one- and two-letter tokens (the E of "E CENTER")
// from producing partial matches on stray characters
const minPartialToken = 3

// genericTokens name shop types or branches rather than a brand. They never
// count as a partial match on their own.
var genericTokens = map[string]bool{
	"MARKT": true, "SUPERMARKT": true, "CENTER": true, "CITY": true,
	"SÜD": true, "NORD": true, "PLUS": true, "DISCOUNT": true,
}

func (d *Detector) variantMatchers(p *Profile) []variantMatcher {
	d.mu.RLock()
	vm, ok := d.matchers[p]
	d.mu.RUnlock()
	if ok {
		return vm
	}

	vm = make([]variantMatcher, 0, len(p.Variants))
	for _, v := range p.Variants {
		words := strings.Fields(normalizeName(v))
		if len(words) == 0 {
			continue
		}
		parts := make([]string, len(words))
		m := variantMatcher{words: len(words)}
		for i, w := range words {
			parts[i] = d.config.Confusions.pattern(w)
		}
		// Only the leading token carries the brand
		if lead := words[0]; len([]rune(lead)) >= minPartialToken && !genericTokens[lead] {
			m.partial = regexp.MustCompile(`(?:^|\s)` + parts[0] + `(?:\s|$)`)
		}
		seq := strings.Join(parts, `\s*`)
		m.full = regexp.MustCompile(`(?:^|\s)` + seq + `(?:\s|$)`)
		m.inner = regexp.MustCompile(seq)
		vm = append(vm, m)
	}

	d.mu.Lock()
	d.matchers[p] = vm
	d.mu.Unlock()
	return vm
}

// nameSignal scores fuzzy containment of the profile's name variants
func (d *Detector) nameSignal(lines []layout.Line, p *Profile) float64 {
	matchers := d.variantMatchers(p)
	if len(matchers) == 0 {
		return 0
	}

	best := 0.0
	for _, l := range lines {
		text := normalizeName(l.Text)
		if text == "" {
			continue
		}
		for _, m := range matchers {
			if score := m.score(text); score > best {
				best = score
			}
			if best == 1.0 {
				return best
			}
		}
	}
	return best
}

func (m variantMatcher) score(text string) float64 {
	if m.full.MatchString(text) {
		if m.words > 1 {
			return 1.0
		}
		return 0.7
	}
	if m.words > 1 && m.partial != nil && m.partial.MatchString(text) {
		return 0.6
	}
	if m.inner.MatchString(text) {
		return 0.5
	}
	return 0
}

// structureSignal counts the structural markers implied by the profile's flags
func (d *Detector) structureSignal(lines []layout.Line, p *Profile) float64 {
	count := 0
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if p.HasArticleNumbers && p.ArticlePattern.MatchString(text) {
			count++
			continue
		}
		switch p.PriceLocation {
		case SameLine:
			if p.ProductPattern.MatchString(text) {
				count++
			}
		case NextLine:
			if p.PricePattern.MatchString(text) {
				count++
			}
		case SeparateColumn:
			if l.Column == layout.ColumnPrice {
				count++
			}
		}
	}

	switch {
	case count > d.config.StructureHigh:
		return 1.0
	case count > d.config.StructureLow:
		return 0.5
	default:
		return 0
	}
}

// footerSignal looks for the profile's footer keywords in the trailing lines
func (d *Detector) footerSignal(lines []layout.Line, p *Profile) float64 {
	if len(p.FooterKeywords) == 0 || len(lines) == 0 {
		return 0
	}

	window := d.config.FooterWindow
	if third := len(lines) / 3; third > window {
		window = third
	}
	start := len(lines) - window
	if start < 0 {
		start = 0
	}

	tail := make([]string, 0, len(lines)-start)
	for _, l := range lines[start:] {
		tail = append(tail, foldName(l.Text))
	}

	score := 0.0
	for _, kw := range p.FooterKeywords {
		needle := foldName(kw)
		if needle == "" {
			continue
		}
		for _, t := range tail {
			if strings.Contains(t, needle) {
				score += d.config.FooterKeywordScore
				break
			}
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
