package classify

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parsePrediction", func() {
	var (
		input      string
		prediction Prediction
		err        error
	)

	JustBeforeEach(func() {
		prediction, err = parsePrediction(input)
	})

	When("parsing valid JSON", func() {
		BeforeEach(func() {
			input = `{"category": "fridge", "confidence": 0.85}`
		})

		It("should parse the prediction", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prediction).To(Equal(Prediction{Category: Fridge, Confidence: 0.85}))
		})
	})

	When("parsing JSON with markdown code blocks", func() {
		BeforeEach(func() {
			input = "```json\n{\"category\": \"Pantry\", \"confidence\": 0.6}\n```"
		})

		It("should parse the prediction", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prediction.Category).To(Equal(Pantry))
		})
	})

	When("the JSON is surrounded by text", func() {
		BeforeEach(func() {
			input = `Sure! {"category": "freezer", "confidence": 0.7} Hope this helps.`
		})

		It("should extract the object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prediction.Category).To(Equal(Freezer))
		})
	})

	When("the confidence is out of range", func() {
		BeforeEach(func() {
			input = `{"category": "household", "confidence": 7}`
		})

		It("should clamp it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(prediction.Confidence).To(Equal(1.0))
		})
	})

	When("the category is unknown", func() {
		BeforeEach(func() {
			input = `{"category": "garage", "confidence": 0.9}`
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("unknown category")))
		})
	})

	When("there is no JSON", func() {
		BeforeEach(func() {
			input = "fridge"
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("no JSON object found")))
		})
	})

	When("the JSON is malformed", func() {
		BeforeEach(func() {
			input = `{"category": fridge}`
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("unmarshaling json")))
		})
	})
})

var _ = Describe("buildPrompt", func() {
	It("should quote the product name", func() {
		Expect(buildPrompt(`Bio "Milch"`)).To(ContainSubstring(`Item: "Bio \"Milch\""`))
	})
})
