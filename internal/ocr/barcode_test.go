package ocr

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ReadBarcode", func() {
	When("the image contains a Code 128 barcode", func() {
		It("should return its text", func() {
			matrix, err := oned.NewCode128Writer().Encode("BON0815", gozxing.BarcodeFormat_CODE_128, 300, 60, nil)
			Expect(err).NotTo(HaveOccurred())

			text, ok := ReadBarcode(matrix)
			Expect(ok).To(BeTrue())
			Expect(text).To(Equal("BON0815"))
		})
	})

	When("the image is blank", func() {
		It("should report no barcode", func() {
			_, ok := ReadBarcode(image.NewGray(image.Rect(0, 0, 120, 40)))
			Expect(ok).To(BeFalse())
		})
	})
})
