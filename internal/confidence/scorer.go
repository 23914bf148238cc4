package confidence

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/zombor/pantry-scan/internal/extraction"
)

// Factor names one independent quality measurement
type Factor string

const (
	FactorTotalConsistency Factor = "total_consistency"
	FactorPriceValidity    Factor = "price_validity"
	FactorStoreDetection   Factor = "store_detection"
	FactorProductCount     Factor = "product_count"
	FactorOCRQuality       Factor = "ocr_quality"
	FactorNameQuality      Factor = "name_quality"
	FactorDateValidity     Factor = "date_validity"
)

// Weights are the fixed factor weights; they sum to 1
var Weights = map[Factor]float64{
	FactorTotalConsistency: 0.25,
	FactorPriceValidity:    0.18,
	FactorStoreDetection:   0.15,
	FactorProductCount:     0.12,
	FactorOCRQuality:       0.12,
	FactorNameQuality:      0.10,
	FactorDateValidity:     0.08,
}

// Factors lists every factor in weight order
var Factors = []Factor{
	FactorTotalConsistency,
	FactorPriceValidity,
	FactorStoreDetection,
	FactorProductCount,
	FactorOCRQuality,
	FactorNameQuality,
	FactorDateValidity,
}

// Rating is the three-tier reliability classification
type Rating string

const (
	RatingHigh   Rating = "high"
	RatingMedium Rating = "medium"
	RatingLow    Rating = "low"
)

// RatingFor maps an overall score to its rating
func RatingFor(overall float64) Rating {
	switch {
	case overall >= 0.80:
		return RatingHigh
	case overall >= 0.50:
		return RatingMedium
	default:
		return RatingLow
	}
}

// Result is the scored quality of one extraction
type Result struct {
	Overall float64            `json:"overall"`
	Factors map[Factor]float64 `json:"factors"`
	Rating  Rating             `json:"rating"`
	Issues  []string           `json:"issues"`
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

var (
	minTolerance = decimal.RequireFromString("0.50")
	tolerancePct = decimal.RequireFromString("0.15")
	two          = decimal.NewFromInt(2)
)

const (
	minNameLength = 3
	maxNameLength = 50
	maxProducts   = 100
	// noisyTextScore is the ocr_quality below which the text is reported as noisy
	noisyTextScore = 0.8
	// weakStoreScore is the store_detection below which the store is reported as uncertain
	weakStoreScore = 0.5
)

// Scorer computes the seven-factor confidence of an extraction
type Scorer struct {
	timeSource TimeSource
}

// NewScorer creates a Scorer that dates receipts against the wall clock
func NewScorer() *Scorer {
	return &Scorer{timeSource: &defaultTimeSource{}}
}

// NewScorerWithTimeSource creates a Scorer with a custom clock for testing
func NewScorerWithTimeSource(timeSource TimeSource) *Scorer {
	return &Scorer{timeSource: timeSource}
}

// Score rates a parsed receipt. rawLineCount is the number of reconstructed lines,
// noiseRatio the share of unexpected characters in them and merchantConfidence
// the detector's confidence for the chosen merchant.
func (s *Scorer) Score(receipt *extraction.Receipt, rawLineCount int, noiseRatio, merchantConfidence float64) Result {
	if receipt == nil {
		receipt = &extraction.Receipt{}
	}

	issues := []string{}
	issue := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if rawLineCount == 0 {
		issue("No text recognized")
	}

	factors := map[Factor]float64{
		FactorTotalConsistency: totalConsistency(receipt, issue),
		FactorPriceValidity:    priceValidity(receipt, issue),
		FactorStoreDetection:   storeDetection(receipt, merchantConfidence, issue),
		FactorProductCount:     productCount(receipt, issue),
		FactorOCRQuality:       ocrQuality(noiseRatio, issue),
		FactorNameQuality:      nameQuality(receipt, issue),
		FactorDateValidity:     dateValidity(receipt, s.timeSource.Now(), issue),
	}

	overall := 0.0
	for _, f := range Factors {
		overall += factors[f] * Weights[f]
	}
	overall = clamp(overall)

	result := Result{
		Overall: overall,
		Factors: factors,
		Rating:  RatingFor(overall),
		Issues:  issues,
	}
	slog.Debug("Scored receipt", "overall", overall, "rating", result.Rating, "issues", len(issues))
	return result
}

func totalConsistency(r *extraction.Receipt, issue func(string, ...any)) float64 {
	if r.Total == nil || r.Total.IsZero() {
		issue("No total found")
		return 0.3
	}

	sum := r.ProductSum()
	diff := sum.Sub(*r.Total).Abs()
	tolerance := decimal.Max(r.Total.Abs().Mul(tolerancePct), minTolerance)

	switch {
	case diff.LessThan(tolerance):
		return 1.0
	case diff.LessThan(tolerance.Mul(two)):
		issue("Total differs from sum of products (%s vs %s)", r.Total.StringFixed(2), sum.StringFixed(2))
		return 0.7
	default:
		issue("Total differs from sum of products (%s vs %s)", r.Total.StringFixed(2), sum.StringFixed(2))
		return 0.4
	}
}

func priceValidity(r *extraction.Receipt, issue func(string, ...any)) float64 {
	if len(r.Products) == 0 {
		return 0.0
	}

	valid := 0
	for _, p := range r.Products {
		if p.Price.IsPositive() && p.Price.LessThan(extraction.PriceCeiling) {
			valid++
		}
	}
	if invalid := len(r.Products) - valid; invalid > 0 {
		issue("%d of %d prices are outside the valid range", invalid, len(r.Products))
	}
	return float64(valid) / float64(len(r.Products))
}

func storeDetection(r *extraction.Receipt, merchantConfidence float64, issue func(string, ...any)) float64 {
	if !r.HasMerchant() {
		issue("Unknown store")
		return 0.3
	}

	score := clamp(merchantConfidence)
	if score < weakStoreScore {
		issue("Store detection is uncertain (%.0f%%)", score*100)
	}
	return score
}

func productCount(r *extraction.Receipt, issue func(string, ...any)) float64 {
	n := len(r.Products)
	switch {
	case n == 0:
		issue("No products found")
		return 0.2
	case n == 1:
		issue("Only one product found")
		return 0.6
	case n > maxProducts:
		issue("Unusually many products (%d)", n)
		return 0.4
	default:
		return 1.0
	}
}

func ocrQuality(noiseRatio float64, issue func(string, ...any)) float64 {
	score := clamp(1.0 - noiseRatio)
	if score < noisyTextScore {
		issue("Recognized text is noisy (%.0f%% unexpected characters)", (1-score)*100)
	}
	return score
}

func nameQuality(r *extraction.Receipt, issue func(string, ...any)) float64 {
	if len(r.Products) == 0 {
		return 0.4
	}

	total := 0
	for _, p := range r.Products {
		total += utf8.RuneCountInString(p.Name)
	}
	mean := float64(total) / float64(len(r.Products))

	switch {
	case mean < minNameLength:
		issue("Product names are unusually short")
		return 0.4
	case mean > maxNameLength:
		issue("Product names are unusually long")
		return 0.6
	default:
		return 1.0
	}
}

func dateValidity(r *extraction.Receipt, now time.Time, issue func(string, ...any)) float64 {
	if r.Date == nil {
		issue("No date found")
		return 0.3
	}

	date := day(*r.Date)
	today := day(now)
	switch {
	case date.After(today):
		issue("Date is in the future")
		return 0.3
	case date.Before(today.AddDate(-1, 0, 0)):
		issue("Date is more than a year old")
		return 0.5
	default:
		return 1.0
	}
}

// day truncates t to its calendar day so receipt dates compare by date only
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
