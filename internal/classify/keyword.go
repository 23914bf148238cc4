package classify

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// keywordRules maps folded keywords to categories. German compounds put the
// head noun last, so a keyword also matches as the suffix of a longer word.
var keywordRules = map[Category][]string{
	Fridge: {
		"milch", "joghurt", "jogurt", "kaese", "butter", "sahne", "quark", "schmand", "mozzarella", "gouda",
		"wurst", "schinken", "salami", "aufschnitt", "fleisch", "hack", "haehnchen", "haehnchenbrust", "lachs",
		"fisch", "tofu", "eier", "salat", "margarine",
		"milk", "yogurt", "cheese", "cream", "ham", "sausage", "chicken", "eggs",
	},
	Freezer: {
		"tk", "tiefkuehl", "tiefgekuehlt", "eiscreme", "speiseeis", "pommes", "fischstaebchen", "rahmspinat",
		"frozen", "ice cream",
	},
	Pantry: {
		"brot", "broetchen", "toast", "nudeln", "spaghetti", "pasta", "reis", "mehl", "zucker", "salz", "kaffee",
		"tee", "muesli", "haferflocken", "apfelmus", "konserve", "dose", "oel", "essig", "honig", "marmelade",
		"schokolade", "chips", "keks", "kekse", "wasser", "saft", "apfel", "aepfel", "bananen", "banane",
		"kartoffeln", "zwiebeln", "tomaten", "gurke",
		"bread", "rice", "flour", "sugar", "coffee", "tea", "cereal", "oil", "water", "juice",
	},
	Household: {
		"spuelmittel", "waschmittel", "weichspueler", "toilettenpapier", "klopapier", "kuechenrolle", "seife",
		"shampoo", "duschgel", "zahnpasta", "zahncreme", "muellbeutel", "reiniger", "batterien", "taschentuecher",
		"detergent", "soap", "paper towel", "toothpaste",
	},
}

const (
	exactConfidence   = 0.9
	suffixConfidence  = 0.75
	learnedConfidence = 1.0
	// minSuffixKeyword keeps short keywords such as "reis" from matching inside "preis"
	minSuffixKeyword = 5
)

// ruleOrder decides ties: a frozen marker outranks the food it describes
var ruleOrder = []Category{Freezer, Household, Fridge, Pantry}

var folder = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Keyword classifies product names offline with keyword rules. It learns
// from corrections, which then take precedence over the rules.
type Keyword struct {
	mu      sync.RWMutex
	learned map[string]Category
}

// NewKeyword creates a Keyword classifier
func NewKeyword() *Keyword {
	return &Keyword{learned: make(map[string]Category)}
}

// Classify matches the product name against learned corrections, then keyword rules
func (k *Keyword) Classify(ctx context.Context, name string) (Prediction, error) {
	folded := fold(name)
	if folded == "" {
		return Prediction{Category: Other}, nil
	}

	k.mu.RLock()
	learned, ok := k.learned[folded]
	k.mu.RUnlock()
	if ok {
		return Prediction{Category: learned, Confidence: learnedConfidence}, nil
	}

	best := Prediction{Category: Other}
	words := strings.Fields(folded)
	for _, category := range ruleOrder {
		for _, kw := range keywordRules[category] {
			if score := matchKeyword(folded, words, kw); score > best.Confidence {
				best = Prediction{Category: category, Confidence: score}
			}
		}
	}
	return best, nil
}

// RecordCorrection remembers the assigned category for this product name
func (k *Keyword) RecordCorrection(ctx context.Context, name string, assigned, predicted Category) error {
	folded := fold(name)
	if folded == "" {
		return nil
	}

	k.mu.Lock()
	k.learned[folded] = assigned
	k.mu.Unlock()
	return nil
}

func matchKeyword(folded string, words []string, kw string) float64 {
	if strings.Contains(kw, " ") {
		if strings.Contains(folded, kw) {
			return exactConfidence
		}
		return 0
	}

	score := 0.0
	for _, w := range words {
		switch {
		case w == kw:
			return exactConfidence
		case len(kw) >= minSuffixKeyword && strings.HasSuffix(w, kw):
			score = suffixConfidence
		}
	}
	return score
}

// fold lower-cases the name, spells out umlauts and drops punctuation
func fold(name string) string {
	lower := cases.Lower(language.German).String(name)
	lower = folder.Replace(lower)

	var b strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
