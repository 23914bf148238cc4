package merchant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PriceLocation tells the extraction engine where a product's price is printed
type PriceLocation string

const (
	// SameLine prices share the line with the description
	SameLine PriceLocation = "same_line"
	// NextLine prices are printed on the line after the description
	NextLine PriceLocation = "next_line"
	// SeparateColumn prices come from the price column of the same row
	SeparateColumn PriceLocation = "separate_column"
)

// ErrInvalidProfile is returned when a profile definition cannot be compiled
var ErrInvalidProfile = errors.New("invalid merchant profile")

// amount matches a decimal amount with optional thousands separators (1,29 / 1.234,56 / 1,234.56)
const amount = `\d+(?:[.,]\d{3})*[.,]\d{2}`

// Default patterns used when a profile definition leaves a field empty
const (
	DefaultProductPattern     = `^(?P<name>.*?[A-Za-zÄÖÜäöüß].*?)\s+(?P<price>-?` + amount + `)(?:\s*(?:EUR|€))?(?:\s+[A-Z*]{1,2})?$`
	DefaultDescriptionPattern = `^(?P<name>[A-Za-zÄÖÜäöüß].*)$`
	DefaultPricePattern       = `^(?P<price>-?` + amount + `)(?:\s*(?:EUR|€))?(?:\s+[A-Z*]{1,2})?$`
	DefaultTotalPattern       = `(?i)\b(?:summe|gesamtbetrag|gesamt|endbetrag|betrag|zu zahlen|total)\b[^\d\pL-]*(?:(?:eur|€)[^\d\pL-]*)?(?P<total>` + amount + `)`
	DefaultDatePattern        = `(?P<date>\d{4}-\d{2}-\d{2}|\d{1,2}[./-]\d{1,2}[./-]\d{2,4})`
	DefaultQuantityPattern    = `(?P<qty>\d+)\s*[xX*]\s*(?P<unit>` + amount + `)(?:\s|$)`
	DefaultWeightPattern      = `(?P<weight>\d+[.,]\d{1,3})\s*kg\s*[xX*]\s*(?P<unit>` + amount + `)\s*(?:EUR|€)?\s*/\s*kg`
	DefaultArticlePattern     = `^\d{5,8}$`
)

// DefaultDateLayouts are the Go reference layouts tried for captured dates
var DefaultDateLayouts = []string{"2.1.2006", "2.1.06", "2006-01-02", "2/1/2006", "2/1/06", "2-1-2006"}

// ProfileSpec is the declarative, serializable form of a merchant profile
type ProfileSpec struct {
	Name              string        `yaml:"name" json:"name"`
	Variants          []string      `yaml:"variants" json:"variants"`
	PriceLocation     PriceLocation `yaml:"price_location" json:"price_location"`
	HasArticleNumbers bool          `yaml:"has_article_numbers" json:"has_article_numbers"`
	MultiLineProducts bool          `yaml:"multi_line_products" json:"multi_line_products"`
	Patterns          PatternSpec   `yaml:"patterns" json:"patterns"`
	DateLayouts       []string      `yaml:"date_layouts" json:"date_layouts,omitempty"`
	Markers           MarkerSpec    `yaml:"markers" json:"markers"`
	FooterKeywords    []string      `yaml:"footer_keywords" json:"footer_keywords,omitempty"`
}

// PatternSpec holds the regular expressions of a profile
type PatternSpec struct {
	Product  string `yaml:"product" json:"product,omitempty"`
	Price    string `yaml:"price" json:"price,omitempty"`
	Total    string `yaml:"total" json:"total,omitempty"`
	Date     string `yaml:"date" json:"date,omitempty"`
	Quantity string `yaml:"quantity" json:"quantity,omitempty"`
	Weight   string `yaml:"weight" json:"weight,omitempty"`
	Article  string `yaml:"article" json:"article,omitempty"`
}

// MarkerSpec holds section boundary markers, matched case-insensitively
type MarkerSpec struct {
	Start  []string `yaml:"start" json:"start,omitempty"`
	End    []string `yaml:"end" json:"end,omitempty"`
	Ignore []string `yaml:"ignore" json:"ignore,omitempty"`
}

// Profile is a compiled merchant profile. Profiles are shared read-only
// between detection and extraction runs and must not be modified once registered.
type Profile struct {
	Name              string
	Variants          []string
	PriceLocation     PriceLocation
	HasArticleNumbers bool
	MultiLineProducts bool

	ProductPattern  *regexp.Regexp
	PricePattern    *regexp.Regexp
	TotalPattern    *regexp.Regexp
	DatePattern     *regexp.Regexp
	QuantityPattern *regexp.Regexp
	WeightPattern   *regexp.Regexp
	ArticlePattern  *regexp.Regexp
	DateLayouts     []string

	StartMarkers  []*regexp.Regexp
	EndMarkers    []*regexp.Regexp
	IgnoreMarkers []*regexp.Regexp

	FooterKeywords []string

	generic bool
}

// Generic reports whether the profile is the fallback with no merchant identity
func (p *Profile) Generic() bool {
	return p.generic
}

// IsStart reports whether the line opens the product section
func (p *Profile) IsStart(line string) bool {
	return matchAny(p.StartMarkers, line)
}

// IsEnd reports whether the line closes the product section
func (p *Profile) IsEnd(line string) bool {
	return matchAny(p.EndMarkers, line)
}

// IsIgnored reports whether the line should be skipped inside the product section
func (p *Profile) IsIgnored(line string) bool {
	return matchAny(p.IgnoreMarkers, line)
}

func matchAny(markers []*regexp.Regexp, line string) bool {
	for _, m := range markers {
		if m.MatchString(line) {
			return true
		}
	}
	return false
}

// Compile validates a profile definition and compiles its patterns.
// Empty patterns fall back to the package defaults.
func Compile(spec ProfileSpec) (*Profile, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	location := spec.PriceLocation
	switch location {
	case "":
		location = SameLine
	case SameLine, NextLine, SeparateColumn:
	default:
		return nil, fmt.Errorf("%w: %s: unknown price location %q", ErrInvalidProfile, name, location)
	}

	variants := spec.Variants
	if len(variants) == 0 {
		variants = []string{name}
	}

	p := &Profile{
		Name:              name,
		Variants:          append([]string(nil), variants...),
		PriceLocation:     location,
		HasArticleNumbers: spec.HasArticleNumbers,
		MultiLineProducts: spec.MultiLineProducts,
		DateLayouts:       spec.DateLayouts,
		FooterKeywords:    append([]string(nil), spec.FooterKeywords...),
	}
	if len(p.DateLayouts) == 0 {
		p.DateLayouts = DefaultDateLayouts
	}

	productDefault := DefaultProductPattern
	if location != SameLine {
		productDefault = DefaultDescriptionPattern
	}

	patterns := []struct {
		field    string
		source   string
		fallback string
		groups   []string
		target   **regexp.Regexp
	}{
		{"product", spec.Patterns.Product, productDefault, productGroups(location), &p.ProductPattern},
		{"price", spec.Patterns.Price, DefaultPricePattern, []string{"price"}, &p.PricePattern},
		{"total", spec.Patterns.Total, DefaultTotalPattern, []string{"total"}, &p.TotalPattern},
		{"date", spec.Patterns.Date, DefaultDatePattern, []string{"date"}, &p.DatePattern},
		{"quantity", spec.Patterns.Quantity, DefaultQuantityPattern, []string{"qty", "unit"}, &p.QuantityPattern},
		{"weight", spec.Patterns.Weight, DefaultWeightPattern, []string{"weight", "unit"}, &p.WeightPattern},
		{"article", spec.Patterns.Article, DefaultArticlePattern, nil, &p.ArticlePattern},
	}
	for _, pt := range patterns {
		source := pt.source
		if source == "" {
			source = pt.fallback
		}
		re, err := regexp.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s pattern: %v", ErrInvalidProfile, name, pt.field, err)
		}
		for _, g := range pt.groups {
			if re.SubexpIndex(g) < 0 {
				return nil, fmt.Errorf("%w: %s: %s pattern is missing group %q", ErrInvalidProfile, name, pt.field, g)
			}
		}
		*pt.target = re
	}

	var err error
	if p.StartMarkers, err = compileMarkers(spec.Markers.Start); err != nil {
		return nil, fmt.Errorf("%w: %s: start marker: %v", ErrInvalidProfile, name, err)
	}
	if p.EndMarkers, err = compileMarkers(spec.Markers.End); err != nil {
		return nil, fmt.Errorf("%w: %s: end marker: %v", ErrInvalidProfile, name, err)
	}
	if p.IgnoreMarkers, err = compileMarkers(spec.Markers.Ignore); err != nil {
		return nil, fmt.Errorf("%w: %s: ignore marker: %v", ErrInvalidProfile, name, err)
	}

	return p, nil
}

// productGroups lists the capture groups a product pattern must expose
func productGroups(location PriceLocation) []string {
	if location == SameLine {
		return []string{"name", "price"}
	}
	return []string{"name"}
}

func compileMarkers(sources []string) ([]*regexp.Regexp, error) {
	markers := make([]*regexp.Regexp, 0, len(sources))
	for _, s := range sources {
		re, err := regexp.Compile("(?i)" + s)
		if err != nil {
			return nil, err
		}
		markers = append(markers, re)
	}
	return markers, nil
}

// newGeneric builds the fallback profile used when no merchant is detected
func newGeneric() *Profile {
	p, err := Compile(ProfileSpec{
		Name:          "generic",
		PriceLocation: SameLine,
		Markers: MarkerSpec{
			End:    []string{`^\s*(?:summe|gesamt|total|betrag|endbetrag|zu zahlen)\b(?:[^\pL]|eur)*$`},
			Ignore: []string{`\bmwst\b`, `\bust\b`, `\bpfand\b`, `\bnetto\b`, `\bbrutto\b`, `\bsteuer\b`, `\btax\b`},
		},
	})
	if err != nil {
		// Defaults are constants, so this is a programming error
		panic(err)
	}
	p.Variants = nil
	p.generic = true
	return p
}
