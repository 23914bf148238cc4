// Package classify assigns pantry storage locations to product names
package classify

import (
	"context"
	"strings"
)

// Category is a storage location for a purchased product
type Category string

const (
	Fridge    Category = "fridge"
	Freezer   Category = "freezer"
	Pantry    Category = "pantry"
	Household Category = "household"
	Other     Category = "other"
)

// Categories lists every known category
var Categories = []Category{Fridge, Freezer, Pantry, Household, Other}

// ParseCategory returns the category with the given name, ignoring case
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Prediction is a classifier's answer for one product name
type Prediction struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Classifier predicts the category of a product name
type Classifier interface {
	Classify(ctx context.Context, name string) (Prediction, error)
}

// CorrectionSink receives categories assigned by the user. It is write-only
// from the pipeline's point of view.
type CorrectionSink interface {
	RecordCorrection(ctx context.Context, name string, assigned, predicted Category) error
}
