package ocr

import (
	"github.com/ledongthuc/pdf"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/pantry-scan/internal/layout"
)

// glyphs spells s one character at a time from x on the baseline y
func glyphs(s string, x, y float64) []pdf.Text {
	const size, advance = 10.0, 6.0
	out := make([]pdf.Text, 0, len(s))
	for i, r := range s {
		out = append(out, pdf.Text{Font: "Courier", FontSize: size, X: x + float64(i)*advance, Y: y, W: advance, S: string(r)})
	}
	return out
}

var _ = Describe("glyphWords", func() {
	var (
		input     []pdf.Text
		fragments []layout.Fragment
	)

	JustBeforeEach(func() {
		fragments = glyphWords(input)
	})

	When("a receipt has two rows with prices on the right", func() {
		BeforeEach(func() {
			input = nil
			input = append(input, glyphs("Milch", 20, 700)...)
			input = append(input, glyphs("1,29", 200, 700)...)
			input = append(input, glyphs("Brot", 20, 685)...)
			input = append(input, glyphs("0,99", 200, 685)...)
		})

		It("should join glyphs into words", func() {
			texts := make([]string, 0, len(fragments))
			for _, f := range fragments {
				texts = append(texts, f.Text)
			}
			Expect(texts).To(Equal([]string{"Milch", "1,29", "Brot", "0,99"}))
		})

		It("should normalize boxes with the origin at the top left", func() {
			Expect(fragments[0].Box.X).To(BeNumerically("==", 0))
			Expect(fragments[0].Box.Y).To(BeNumerically("==", 0))
			Expect(fragments[2].Box.Y).To(BeNumerically(">", fragments[0].Box.Y))
			Expect(fragments[1].Box.X).To(BeNumerically(">", 0.5))
			Expect(fragments[3].Box.Right()).To(BeNumerically("~", 1, 1e-9))
		})

		It("should mark the text as certain", func() {
			for _, f := range fragments {
				Expect(f.Confidence).To(Equal(1.0))
			}
		})

		It("should feed the layout reconstructor", func() {
			lines := layout.NewReconstructor().Reconstruct(fragments)
			Expect(layout.Texts(lines)).To(Equal([]string{"Milch", "1,29", "Brot", "0,99"}))
			Expect(lines[0].Row).To(Equal(lines[1].Row))
			Expect(lines[1].Column).To(Equal(layout.ColumnPrice))
		})
	})

	When("words are separated by space glyphs", func() {
		BeforeEach(func() {
			input = glyphs("Bio Milch", 20, 700)
		})

		It("should split at the spaces", func() {
			Expect(fragments).To(HaveLen(2))
			Expect(fragments[0].Text).To(Equal("Bio"))
			Expect(fragments[1].Text).To(Equal("Milch"))
		})
	})

	When("there is no text", func() {
		BeforeEach(func() {
			input = []pdf.Text{{S: " "}, {S: "\n"}}
		})

		It("should return no fragments", func() {
			Expect(fragments).To(BeEmpty())
		})
	})
})

var _ = Describe("TextLayer", func() {
	It("should reject data that is not a PDF", func() {
		_, err := TextLayer([]byte("not a pdf"))
		Expect(err).To(HaveOccurred())
	})
})
