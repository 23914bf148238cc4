package extraction

import (
	"strings"

	"github.com/shopspring/decimal"
)

// digitConfusions repairs letters commonly recognized in place of digits
var digitConfusions = strings.NewReplacer("O", "0", "o", "0", "l", "1", "I", "1")

// ParseAmount parses a printed amount such as "1,29", "1.234,56", "1,234.56"
// or "-0,50 EUR". The separator that appears last is the decimal separator
// unless it is followed by exactly three digits.
func ParseAmount(s string) (decimal.Decimal, bool) {
	return parseNumber(s, true)
}

// parseWeight parses a weight such as "0,754" where three decimals are common
func parseWeight(s string) (decimal.Decimal, bool) {
	return parseNumber(s, false)
}

func parseNumber(s string, groupThousands bool) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	for _, suffix := range []string{"EUR", "€", "$"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	s = digitConfusions.Replace(strings.ReplaceAll(s, " ", ""))
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	sep := strings.LastIndexAny(s, ".,")
	intPart, fracPart := s, ""
	if sep >= 0 {
		intPart, fracPart = s[:sep], s[sep+1:]
		if groupThousands && len(fracPart) == 3 && !strings.ContainsAny(intPart, ".,") && intPart != "" && intPart[0] != '0' {
			// A lone separator followed by three digits groups thousands
			intPart, fracPart = intPart+fracPart, ""
		}
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}

	number := intPart
	if fracPart != "" {
		number += "." + fracPart
	}
	if negative {
		number = "-" + number
	}

	d, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
