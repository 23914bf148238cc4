package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decode", func() {
	var (
		src         *image.Gray
		data        []byte
		contentType string
		img         image.Image
		err         error
	)

	BeforeEach(func() {
		src = image.NewGray(image.Rect(0, 0, 8, 6))
		src.SetGray(2, 3, color.Gray{Y: 200})
	})

	JustBeforeEach(func() {
		img, err = Decode(data, contentType)
	})

	When("the data is a PNG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, src)).To(Succeed())
			data = buf.Bytes()
			contentType = "image/png"
		})

		It("should decode it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds()).To(Equal(src.Bounds()))
		})
	})

	When("the data is a JPEG with an unexpected content type", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, src, nil)).To(Succeed())
			data = buf.Bytes()
			contentType = "application/octet-stream"
		})

		It("should detect the format from the data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(8))
		})
	})

	When("the data is a GIF", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(gif.Encode(&buf, src, nil)).To(Succeed())
			data = buf.Bytes()
			contentType = " IMAGE/GIF "
		})

		It("should decode it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dy()).To(Equal(6))
		})
	})

	When("the data is not an image", func() {
		BeforeEach(func() {
			data = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("should list the supported formats", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported image format"))
		})
	})

	When("the PDF is corrupt", func() {
		BeforeEach(func() {
			data = []byte("%PDF-1.4 broken")
			contentType = ""
		})

		It("should fail to convert it", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("converting PDF to image"))
		})
	})

	When("HEIC data is corrupt", func() {
		BeforeEach(func() {
			data = []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00")
			contentType = "image/jpeg"
		})

		It("should report a HEIC decoding error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("decoding HEIC/HEIF image"))
		})
	})
})

var _ = Describe("format detection", func() {
	DescribeTable("isHEICFormat",
		func(data []byte, expected bool) {
			Expect(isHEICFormat(data)).To(Equal(expected))
		},
		Entry("heic brand", []byte("\x00\x00\x00\x18ftypheic"), true),
		Entry("mif1 brand", []byte("\x00\x00\x00\x18ftypmif1"), true),
		Entry("mp4 brand", []byte("\x00\x00\x00\x18ftypisom"), false),
		Entry("too short", []byte("ftyp"), false),
	)

	DescribeTable("isHEICMimeType",
		func(mimeType string, expected bool) {
			Expect(isHEICMimeType(mimeType)).To(Equal(expected))
		},
		Entry("heic", "image/heic", true),
		Entry("heif sequence", "image/heif-sequence", true),
		Entry("jpeg", "image/jpeg", false),
	)
})
