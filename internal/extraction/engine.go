package extraction

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/pantry-scan/internal/layout"
	"github.com/zombor/pantry-scan/internal/merchant"
)

// State is a section of the receipt being parsed
type State int

const (
	StateHeader State = iota
	StateProducts
	StateFooter
)

// String returns the name of the state
func (s State) String() string {
	switch s {
	case StateHeader:
		return "HEADER"
	case StateProducts:
		return "PRODUCTS"
	case StateFooter:
		return "FOOTER"
	default:
		return "UNKNOWN"
	}
}

// trailingPrice splits "description price" rows that were not separated into columns
var trailingPrice = regexp.MustCompile(`^(.*?)\s+(-?\d+(?:[.,]\d{3})*[.,]\d{2})(?:\s*(?:EUR|€))?(?:\s+[A-Z*]{1,2})?$`)

// entry is one logical row of the receipt. Column lines of the same row are
// joined into text and kept apart in description and price.
type entry struct {
	row         int
	text        string
	description string
	price       string
	split       bool
}

// Engine interprets merchant profiles to extract products, total and date.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	fallback *merchant.Profile
}

// NewEngine creates an Engine that uses fallback when no profile is given
func NewEngine(fallback *merchant.Profile) *Engine {
	return &Engine{fallback: fallback}
}

// Extract runs the HEADER -> PRODUCTS -> FOOTER state machine over the lines.
// It never fails: unmatched lines are skipped and missing fields stay empty.
func (e *Engine) Extract(lines []layout.Line, profile *merchant.Profile) *Receipt {
	if profile == nil {
		profile = e.fallback
	}

	receipt := &Receipt{Products: []Product{}}
	if !profile.Generic() {
		receipt.Merchant = profile.Name
	}

	entries := prepare(lines)
	state := StateHeader

	// A product line only opens the product section when no start marker appears anywhere
	startMarked := false
	for _, en := range entries {
		if profile.IsStart(en.text) {
			startMarked = true
			break
		}
	}

	for i := 0; i < len(entries) && !(state == StateFooter && receipt.Total != nil); {
		text := entries[i].text

		switch state {
		case StateHeader:
			switch {
			case profile.IsStart(text):
				state = transition(state, StateProducts, i)
				i++
			case profile.IsEnd(text) || isTotalLine(text, profile):
				// No product section; the marker line is scanned as footer
				state = transition(state, StateFooter, i)
			case startMarked || profile.IsIgnored(text):
				i++
			default:
				product, consumed, ok := e.matchProduct(entries, i, profile)
				if !ok {
					i++
					continue
				}
				state = transition(state, StateProducts, i)
				receipt.Products = append(receipt.Products, product)
				i += consumed
			}

		case StateProducts:
			switch {
			case profile.IsIgnored(text):
				i++
			case profile.IsEnd(text) || isTotalLine(text, profile):
				state = transition(state, StateFooter, i)
			default:
				product, consumed, ok := e.matchProduct(entries, i, profile)
				if !ok {
					slog.Debug("Skipping unmatched line", "line", i, "text", text)
					i++
					continue
				}
				receipt.Products = append(receipt.Products, product)
				i += consumed
			}

		case StateFooter:
			if total, ok := capture(profile.TotalPattern, text, "total"); ok {
				if amount, ok := ParseAmount(total); ok {
					receipt.Total = &amount
				}
			}
			i++
		}
	}

	receipt.Date = findDate(entries, profile)
	return receipt
}

// isTotalLine reports lines that open with the total, such as "SUMME 2,28".
// A product whose name merely contains a total keyword does not qualify.
func isTotalLine(text string, profile *merchant.Profile) bool {
	loc := profile.TotalPattern.FindStringIndex(text)
	return loc != nil && strings.TrimSpace(text[:loc[0]]) == ""
}

func transition(from, to State, line int) State {
	slog.Debug("Extraction state change", "from", from.String(), "to", to.String(), "line", line)
	return to
}

// prepare merges column lines belonging to the same row
func prepare(lines []layout.Line) []entry {
	entries := make([]entry, 0, len(lines))
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}

		if len(entries) > 0 && entries[len(entries)-1].row == l.Row {
			last := &entries[len(entries)-1]
			last.text = last.text + " " + text
		} else {
			entries = append(entries, entry{row: l.Row, text: text})
		}

		last := &entries[len(entries)-1]
		switch l.Column {
		case layout.ColumnDescription:
			last.description = text
		case layout.ColumnPrice:
			last.price = text
		}
		last.split = last.description != "" && last.price != ""
	}
	return entries
}

// matchProduct tries to read a product starting at entries[i] and returns
// the number of entries consumed
func (e *Engine) matchProduct(entries []entry, i int, profile *merchant.Profile) (Product, int, bool) {
	current := entries[i]
	if isModifierOnly(current.text, profile) {
		return Product{}, 0, false
	}

	var (
		product  Product
		consumed int
		ok       bool
	)
	switch profile.PriceLocation {
	case merchant.NextLine:
		product, consumed, ok = matchNextLine(entries, i, profile)
	case merchant.SeparateColumn:
		if current.split {
			product, consumed, ok = matchColumns(current, profile)
		} else {
			product, consumed, ok = matchTrailingPrice(current, profile)
		}
	default:
		product, consumed, ok = matchSameLine(entries, i, profile)
	}
	if !ok {
		return Product{}, 0, false
	}

	consumed += applyModifiers(&product, entries, i+consumed, profile)

	product.Name = cleanName(product.Name)
	if product.Name == "" || product.Price.IsNegative() {
		slog.Debug("Dropping product", "text", current.text, "price", product.Price.String())
		return Product{}, 0, false
	}
	product.Flagged = product.Price.GreaterThanOrEqual(PriceCeiling)

	return product, consumed, true
}

// matchSameLine reads description and price from one line, or from the line
// and a following price-only line when the profile has multi-line products
func matchSameLine(entries []entry, i int, profile *merchant.Profile) (Product, int, bool) {
	re := profile.ProductPattern
	consumed := 1
	m := re.FindStringSubmatch(entries[i].text)
	if m == nil && profile.MultiLineProducts && i+1 < len(entries) && profile.PricePattern.MatchString(entries[i+1].text) {
		m = re.FindStringSubmatch(entries[i].text + " " + entries[i+1].text)
		consumed = 2
	}
	if m == nil {
		return Product{}, 0, false
	}

	price, ok := ParseAmount(group(re, m, "price"))
	if !ok {
		return Product{}, 0, false
	}
	return Product{
		Name:          group(re, m, "name"),
		Price:         price,
		ArticleNumber: group(re, m, "article"),
	}, consumed, true
}

// matchNextLine reads a description and expects the price on the following
// line, skipping an article number line in between when the profile has them.
// Without a price the product is dropped.
func matchNextLine(entries []entry, i int, profile *merchant.Profile) (Product, int, bool) {
	re := profile.ProductPattern
	m := re.FindStringSubmatch(entries[i].text)
	if m == nil {
		return Product{}, 0, false
	}

	j := i + 1
	article := group(re, m, "article")
	if profile.HasArticleNumbers && j < len(entries) && profile.ArticlePattern.MatchString(entries[j].text) {
		article = entries[j].text
		j++
	}
	if j >= len(entries) {
		slog.Debug("Dropping product without price", "text", entries[i].text)
		return Product{}, 0, false
	}

	raw, ok := capture(profile.PricePattern, entries[j].text, "price")
	if !ok {
		slog.Debug("Dropping product without price", "text", entries[i].text)
		return Product{}, 0, false
	}
	price, ok := ParseAmount(raw)
	if !ok {
		return Product{}, 0, false
	}

	return Product{
		Name:          group(re, m, "name"),
		Price:         price,
		ArticleNumber: article,
	}, j - i + 1, true
}

// matchColumns pairs the description and price columns of one row
func matchColumns(current entry, profile *merchant.Profile) (Product, int, bool) {
	re := profile.ProductPattern
	m := re.FindStringSubmatch(current.description)
	if m == nil {
		return Product{}, 0, false
	}
	raw, ok := capture(profile.PricePattern, current.price, "price")
	if !ok {
		return Product{}, 0, false
	}
	price, ok := ParseAmount(raw)
	if !ok {
		return Product{}, 0, false
	}
	return Product{
		Name:          group(re, m, "name"),
		Price:         price,
		ArticleNumber: group(re, m, "article"),
	}, 1, true
}

// matchTrailingPrice handles rows the layout stage did not split into columns
func matchTrailingPrice(current entry, profile *merchant.Profile) (Product, int, bool) {
	parts := trailingPrice.FindStringSubmatch(current.text)
	if parts == nil {
		return Product{}, 0, false
	}
	return matchColumns(entry{description: parts[1], price: parts[2]}, profile)
}

// applyModifiers applies quantity or weight sub-patterns found in the product
// name or on the next line. It returns the number of extra entries consumed.
func applyModifiers(p *Product, entries []entry, next int, profile *merchant.Profile) int {
	if loc, ok := applyNameQuantity(p, profile.QuantityPattern); ok {
		p.Name = p.Name[:loc[0]] + " " + p.Name[loc[1]:]
		return 0
	}
	if loc, ok := applyWeight(p, p.Name, profile.WeightPattern); ok {
		p.Name = p.Name[:loc[0]] + " " + p.Name[loc[1]:]
		return 0
	}
	if next >= len(entries) {
		return 0
	}

	text := entries[next].text
	if matchesWhole(profile.QuantityPattern, text) {
		if _, ok := applyQuantity(p, text, profile.QuantityPattern); ok {
			return 1
		}
	}
	if matchesWhole(profile.WeightPattern, text) {
		if _, ok := applyWeight(p, text, profile.WeightPattern); ok {
			return 1
		}
	}
	return 0
}

// applyQuantity scales the price by a "2 x 1,50" style quantity
func applyQuantity(p *Product, text string, re *regexp.Regexp) ([]int, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, false
	}
	qty, unit, ok := quantityValues(re, text, loc)
	if !ok {
		return nil, false
	}

	p.Quantity = &qty
	p.UnitPrice = &unit
	p.Price = unit.Mul(decimal.NewFromInt(int64(qty)))
	return loc[:2], true
}

// applyNameQuantity reads a quantity printed inside the product name. The
// line already carries its price, so the quantity only applies when it
// reproduces that price; pack sizes such as "6 x 0,33 l" are left in the name.
func applyNameQuantity(p *Product, re *regexp.Regexp) ([]int, bool) {
	loc := re.FindStringSubmatchIndex(p.Name)
	if loc == nil {
		return nil, false
	}
	qty, unit, ok := quantityValues(re, p.Name, loc)
	if !ok {
		return nil, false
	}
	if !unit.Mul(decimal.NewFromInt(int64(qty))).Equal(p.Price) {
		slog.Debug("Ignoring quantity that disagrees with the price", "name", p.Name, "price", p.Price.String())
		return nil, false
	}

	p.Quantity = &qty
	p.UnitPrice = &unit
	return loc[:2], true
}

func quantityValues(re *regexp.Regexp, text string, loc []int) (int, decimal.Decimal, bool) {
	qtyText := submatch(re, text, loc, "qty")
	qty, ok := parseWeight(qtyText)
	if !ok || !qty.IsInteger() || !qty.IsPositive() {
		return 0, decimal.Zero, false
	}
	unit, ok := ParseAmount(submatch(re, text, loc, "unit"))
	if !ok {
		return 0, decimal.Zero, false
	}
	return int(qty.IntPart()), unit, true
}

// applyWeight annotates a product with a "0,754 kg x 2,99 EUR/kg" style weight
func applyWeight(p *Product, text string, re *regexp.Regexp) ([]int, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, false
	}
	weight, ok := parseWeight(submatch(re, text, loc, "weight"))
	if !ok || !weight.IsPositive() {
		return nil, false
	}
	unit, ok := ParseAmount(submatch(re, text, loc, "unit"))
	if !ok {
		return nil, false
	}

	p.Weight = &weight
	p.UnitPrice = &unit
	if p.Price.IsZero() {
		p.Price = weight.Mul(unit).Round(2)
	}
	return loc[:2], true
}

// isModifierOnly reports lines that carry only an article number, a price,
// a quantity or a weight. Such lines never start a product.
func isModifierOnly(text string, profile *merchant.Profile) bool {
	return profile.ArticlePattern.MatchString(text) ||
		profile.PricePattern.MatchString(text) ||
		matchesWhole(profile.QuantityPattern, text) ||
		matchesWhole(profile.WeightPattern, text)
}

// matchesWhole reports whether re matches the complete trimmed text
func matchesWhole(re *regexp.Regexp, text string) bool {
	text = strings.TrimSpace(text)
	loc := re.FindStringIndex(text)
	return loc != nil && loc[0] == 0 && loc[1] == len(text)
}

// findDate scans every line for the profile's date pattern; the first parseable date wins
func findDate(entries []entry, profile *merchant.Profile) *time.Time {
	for _, e := range entries {
		raw, ok := capture(profile.DatePattern, e.text, "date")
		if !ok {
			continue
		}
		for _, layout := range profile.DateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
	}
	return nil
}

// capture returns the named group of the first match of re in text
func capture(re *regexp.Regexp, text, name string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := group(re, m, name)
	return v, v != ""
}

func group(re *regexp.Regexp, m []string, name string) string {
	idx := re.SubexpIndex(name)
	if idx < 0 || idx >= len(m) {
		return ""
	}
	return strings.TrimSpace(m[idx])
}

func submatch(re *regexp.Regexp, text string, loc []int, name string) string {
	idx := re.SubexpIndex(name)
	if idx < 0 || 2*idx+1 >= len(loc) || loc[2*idx] < 0 {
		return ""
	}
	return strings.TrimSpace(text[loc[2*idx]:loc[2*idx+1]])
}

// cleanName collapses whitespace and strips decoration around a product name
func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return strings.Trim(name, " *.:-_#")
}
