package merchant

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ConfusionTable maps a canonical character to the strings a recognizer
// commonly produces in its place (for example I read as T or 1).
type ConfusionTable map[rune][]string

// DefaultConfusions returns the confusion table used for name matching
func DefaultConfusions() ConfusionTable {
	return ConfusionTable{
		'I': {"T", "1", "L", "O", "|"},
		'O': {"0", "Q", "D"},
		'D': {"0", "O"},
		'Ü': {"00", "U", "UE"},
		'Ö': {"0", "O", "OE"},
		'Ä': {"A", "AE"},
		'E': {"F", "3"},
		'S': {"5"},
		'B': {"8"},
		'L': {"1", "I"},
		'Z': {"2"},
		'G': {"6"},
	}
}

// With returns a copy of the table with extra alternatives for a character
func (t ConfusionTable) With(canonical rune, alternatives ...string) ConfusionTable {
	out := make(ConfusionTable, len(t)+1)
	for k, v := range t {
		out[k] = append([]string(nil), v...)
	}
	out[canonical] = append(out[canonical], alternatives...)
	return out
}

// pattern builds a regular expression source for s that accepts every
// configured confusion in place of each character
func (t ConfusionTable) pattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		alts, ok := t[r]
		if !ok {
			b.WriteString(regexp.QuoteMeta(string(r)))
			continue
		}
		b.WriteString("(?:")
		b.WriteString(regexp.QuoteMeta(string(r)))
		for _, a := range alts {
			b.WriteString("|")
			b.WriteString(regexp.QuoteMeta(a))
		}
		b.WriteString(")")
	}
	return b.String()
}

// normalizeName upper-cases text and reduces everything except letters and
// digits to single spaces. Diacritics are kept so confusions such as Ü->00 still apply.
func normalizeName(s string) string {
	// Casers are stateful, so each call gets its own
	s = cases.Upper(language.German).String(norm.NFC.String(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '|'
	})
	return strings.Join(fields, " ")
}

// foldName normalizes like normalizeName and additionally strips diacritics
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, normalizeName(s))
	if err != nil {
		return normalizeName(s)
	}
	return folded
}
