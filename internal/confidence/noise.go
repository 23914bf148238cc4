package confidence

import (
	"strings"
	"unicode"
)

// allowedPunctuation is the punctuation expected on a receipt besides letters, digits and currency symbols
const allowedPunctuation = ".,-/()"

// NoiseRatio returns the fraction of characters in texts that are outside the
// receipt alphabet. Empty input has no noise.
func NoiseRatio(texts []string) float64 {
	total, noise := 0, 0
	for _, t := range texts {
		for _, r := range t {
			total++
			if !expected(r) {
				noise++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(noise) / float64(total)
}

func expected(r rune) bool {
	return unicode.IsLetter(r) ||
		unicode.IsDigit(r) ||
		unicode.IsSpace(r) ||
		unicode.Is(unicode.Sc, r) ||
		strings.ContainsRune(allowedPunctuation, r)
}
