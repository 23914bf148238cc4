package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// categoryPrompt is the shared prompt used by all LLM classifiers
const categoryPrompt = `You sort grocery receipt items into household storage locations.
The item below was read from a German or English supermarket receipt by OCR, so it may be abbreviated or contain recognition errors.

Item: %q

Choose exactly one category:
- "fridge": chilled food such as dairy, meat, sausage, fish, fresh salads
- "freezer": frozen food
- "pantry": shelf-stable food and drinks such as bread, pasta, rice, canned goods, coffee, fruit and vegetables kept at room temperature
- "household": non-food items such as cleaning products, toiletries, paper goods
- "other": anything else, including deposits and discounts

Return ONLY valid JSON in this exact format:
{"category": "pantry", "confidence": 0.0}

Important:
- confidence is a number between 0 and 1
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

func buildPrompt(name string) string {
	return fmt.Sprintf(categoryPrompt, name)
}

// parsePrediction parses the JSON answer of an LLM classifier
func parsePrediction(text string) (Prediction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return Prediction{}, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return Prediction{}, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Prediction{}, fmt.Errorf("unmarshaling json: %w", err)
	}

	category, ok := ParseCategory(raw.Category)
	if !ok {
		return Prediction{}, fmt.Errorf("unknown category %q", raw.Category)
	}

	confidence := raw.Confidence
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}

	return Prediction{Category: category, Confidence: confidence}, nil
}
