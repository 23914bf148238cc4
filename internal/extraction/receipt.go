package extraction

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceCeiling is the sanity limit above which a product price is flagged
var PriceCeiling = decimal.NewFromInt(1000)

// Product is a single extracted line item
type Product struct {
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	Quantity      *int             `json:"quantity,omitempty"`
	Weight        *decimal.Decimal `json:"weight,omitempty"`
	ArticleNumber string           `json:"article_number,omitempty"`
	// Flagged marks prices at or above PriceCeiling; such products are kept
	Flagged bool `json:"flagged,omitempty"`
}

// Receipt is the structured result of extraction. Total is whatever the
// receipt printed and may disagree with the product sum.
type Receipt struct {
	Merchant string           `json:"merchant,omitempty"`
	Products []Product        `json:"products"`
	Total    *decimal.Decimal `json:"total,omitempty"`
	Date     *time.Time       `json:"date,omitempty"`
}

// HasMerchant reports whether the receipt was parsed with a known merchant profile
func (r *Receipt) HasMerchant() bool {
	return r.Merchant != ""
}

// ProductSum adds up all product prices
func (r *Receipt) ProductSum() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range r.Products {
		sum = sum.Add(p.Price)
	}
	return sum
}
