package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/pantry-scan/internal/classify"
	"github.com/zombor/pantry-scan/internal/confidence"
	"github.com/zombor/pantry-scan/internal/extraction"
	"github.com/zombor/pantry-scan/internal/merchant"
)

// Product is an extracted product with its storage location
type Product struct {
	extraction.Product
	Category           classify.Category `json:"category,omitempty"`
	CategoryConfidence float64           `json:"category_confidence,omitempty"`
	// Corrected marks categories assigned by the user
	Corrected bool `json:"corrected,omitempty"`
}

// Scan is one processed receipt with everything the pipeline found
type Scan struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename,omitempty"` // Stored source file, empty for text scans
	ContentType string            `json:"content_type,omitempty"`
	Pass        string            `json:"pass,omitempty"` // Winning OCR pass
	Barcode     string            `json:"barcode,omitempty"`
	Lines       []string          `json:"lines"`
	Match       *merchant.Match   `json:"match,omitempty"`
	Store       string            `json:"store,omitempty"`
	Products    []Product         `json:"products"`
	Total       *decimal.Decimal  `json:"total,omitempty"`
	Date        *time.Time        `json:"date,omitempty"`
	Confidence  confidence.Result `json:"confidence"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ProductSum adds up all product prices
func (s *Scan) ProductSum() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range s.Products {
		sum = sum.Add(p.Price)
	}
	return sum
}

// Correction is a category the user assigned in place of the predicted one
type Correction struct {
	Name      string            `json:"name"`
	Assigned  classify.Category `json:"assigned"`
	Predicted classify.Category `json:"predicted"`
	CreatedAt time.Time         `json:"created_at"`
}

// MerchantInfo describes a registered merchant profile
type MerchantInfo struct {
	Name              string                 `json:"name"`
	Variants          []string               `json:"variants"`
	PriceLocation     merchant.PriceLocation `json:"price_location"`
	HasArticleNumbers bool                   `json:"has_article_numbers"`
	MultiLineProducts bool                   `json:"multi_line_products"`
}
