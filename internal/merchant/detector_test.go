package merchant

import (
	"github.com/zombor/pantry-scan/internal/layout"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var aldiReceipt = []string{
	"ALD1 S00D",
	"Bio Apfelmus",
	"605084",
	"2,50",
	"Milch",
	"605122",
	"1,29",
	"Betrag 3,79 EUR",
	"Kartenzahlung",
	"Vielen Dank",
}

var lidlReceipt = []string{
	"LIDL",
	"EUR",
	"Bio Milch 1,29 A",
	"Brot 0,99 A",
	"Butter 2,19 A",
	"Kaese 3,49 A",
	"Eier 2,79 A",
	"Bananen 1,59 A",
	"SUMME 12,34",
	"zu zahlen 12,34",
	"Kartenzahlung",
}

var _ = Describe("Detector", func() {
	var (
		detector *Detector
		registry *Registry
		lines    []layout.Line
		match    *Match
	)

	BeforeEach(func() {
		var err error
		registry, err = DefaultRegistry()
		Expect(err).NotTo(HaveOccurred())
		detector = NewDetector()
	})

	JustBeforeEach(func() {
		match = detector.Detect(lines, registry.Profiles())
	})

	When("the receipt is an ALDI receipt with recognition errors in the name", func() {
		BeforeEach(func() {
			lines = layout.LinesFromText(aldiReceipt...)
		})

		It("should detect ALDI", func() {
			Expect(match).NotTo(BeNil())
			Expect(match.Merchant).To(Equal("ALDI"))
			Expect(match.Profile.Name).To(Equal("ALDI"))
		})

		It("should report the signal breakdown", func() {
			Expect(match.Signals.Name).To(Equal(1.0))
			Expect(match.Signals.Structure).To(Equal(0.5))
			Expect(match.Signals.Pattern).To(Equal(1.0))
			Expect(match.Confidence).To(BeNumerically("~", 0.85, 1e-9))
		})
	})

	When("the receipt is a LIDL receipt", func() {
		BeforeEach(func() {
			lines = layout.LinesFromText(lidlReceipt...)
		})

		It("should detect LIDL", func() {
			Expect(match).NotTo(BeNil())
			Expect(match.Merchant).To(Equal("LIDL"))
		})

		It("should give full structure credit for many same-line products", func() {
			Expect(match.Signals.Structure).To(Equal(1.0))
		})
	})

	When("nothing identifies a merchant", func() {
		BeforeEach(func() {
			lines = layout.LinesFromText("Kiosk am Eck", "Kaffee", "Danke")
		})

		It("should return nil", func() {
			Expect(match).To(BeNil())
		})
	})

	When("an unregistered shop shares a generic word with a variant", func() {
		BeforeEach(func() {
			lines = layout.LinesFromText("NETTO Markt", "Brot 0,99", "Milch 1,29", "Butter 3,19", "SUMME 5,47")
		})

		It("should return nil", func() {
			Expect(match).To(BeNil())
		})

		It("should give no name credit for the shop type", func() {
			rewe, ok := registry.Get("REWE")
			Expect(ok).To(BeTrue())
			Expect(detector.Score(lines, rewe).Signals.Name).To(Equal(0.0))
		})
	})

	When("an unregistered shop shares a branch word with a variant", func() {
		BeforeEach(func() {
			lines = layout.LinesFromText("Baeckerei Sued", "Brezel 0,89", "Kaffee 2,50", "Kartenzahlung")
		})

		It("should return nil", func() {
			Expect(match).To(BeNil())
		})
	})

	When("there are no lines", func() {
		BeforeEach(func() {
			lines = nil
		})

		It("should return nil", func() {
			Expect(match).To(BeNil())
		})
	})

	When("two profiles score identically", func() {
		var first, second *Profile

		BeforeEach(func() {
			var err error
			first, err = Compile(ProfileSpec{Name: "Markt A", Variants: []string{"FRISCHEMARKT"}})
			Expect(err).NotTo(HaveOccurred())
			second, err = Compile(ProfileSpec{Name: "Markt B", Variants: []string{"FRISCHEMARKT"}})
			Expect(err).NotTo(HaveOccurred())
			lines = layout.LinesFromText("FRISCHEMARKT", "Gurke 0,79")
		})

		It("should return the one registered first", func() {
			for i := 0; i < 10; i++ {
				m := detector.Detect(lines, []*Profile{first, second})
				Expect(m).NotTo(BeNil())
				Expect(m.Merchant).To(Equal("Markt A"))
			}
		})
	})

	Describe("ScoreAll", func() {
		BeforeEach(func() {
			lines = layout.LinesFromText(aldiReceipt...)
		})

		It("should return one score per profile in order", func() {
			matches := detector.ScoreAll(lines, registry.Profiles())
			Expect(matches).To(HaveLen(registry.Len()))
			for i, p := range registry.Profiles() {
				Expect(matches[i].Merchant).To(Equal(p.Name))
				Expect(matches[i].Confidence).To(BeNumerically(">=", 0))
				Expect(matches[i].Confidence).To(BeNumerically("<=", 1))
			}
		})

		It("should never select a profile at or below the threshold", func() {
			matches := detector.ScoreAll(lines, registry.Profiles())
			best := selectBest(matches)
			Expect(best).NotTo(BeNil())
			Expect(best.Confidence).To(BeNumerically(">", CandidateThreshold))
		})
	})
})

var _ = Describe("selectBest", func() {
	It("should pick the higher of two close candidates", func() {
		best := selectBest([]Match{
			{Merchant: "LIDL", Confidence: 0.41},
			{Merchant: "ALDI", Confidence: 0.42},
		})
		Expect(best).NotTo(BeNil())
		Expect(best.Merchant).To(Equal("ALDI"))
		Expect(best.Confidence).To(Equal(0.42))
	})

	It("should keep the first candidate on a tie", func() {
		best := selectBest([]Match{
			{Merchant: "REWE", Confidence: 0.42},
			{Merchant: "EDEKA", Confidence: 0.42},
		})
		Expect(best.Merchant).To(Equal("REWE"))
	})

	It("should reject a score equal to the threshold", func() {
		Expect(selectBest([]Match{{Merchant: "PENNY", Confidence: 0.30}})).To(BeNil())
	})

	It("should return nil for no matches", func() {
		Expect(selectBest(nil)).To(BeNil())
	})
})

var _ = Describe("name signal", func() {
	var detector *Detector

	BeforeEach(func() {
		detector = NewDetector()
	})

	DescribeTable("scoring tiers",
		func(variants []string, text string, expected float64) {
			p, err := Compile(ProfileSpec{Name: "Test", Variants: variants})
			Expect(err).NotTo(HaveOccurred())
			Expect(detector.nameSignal(layout.LinesFromText(text), p)).To(Equal(expected))
		},
		Entry("full multi-token match", []string{"REWE MARKT"}, "REWE Markt GmbH", 1.0),
		Entry("multi-token match across confusions", []string{"ALDI SÜD"}, "AL0I SUD", 1.0),
		Entry("single-token whole word", []string{"EDEKA"}, "EDEKA Center", 0.7),
		Entry("partial multi-token", []string{"PENNY MARKT"}, "PENNY", 0.6),
		Entry("trailing shop type alone", []string{"PENNY MARKT"}, "Markt", 0.0),
		Entry("trailing branch alone", []string{"ALDI SÜD"}, "Bäckerei Süd", 0.0),
		Entry("generic leading token", []string{"CITY GROCER"}, "City Kiosk", 0.0),
		Entry("inside a longer word", []string{"LIDL"}, "WWW.LIDLPLUS.DE", 0.5),
		Entry("no match", []string{"KAUFLAND"}, "Bäckerei Schmidt", 0.0),
	)
})

var _ = Describe("ConfusionTable", func() {
	It("should extend a copy without touching the original", func() {
		base := DefaultConfusions()
		extended := base.With('A', "4")
		Expect(extended['A']).To(ContainElement("4"))
		Expect(base).NotTo(HaveKey('A'))
	})
})
