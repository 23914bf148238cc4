package ocr

import (
	"context"
	"errors"
	"image"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/pantry-scan/internal/layout"
)

// mockRecognizer answers by the width of the prepared image, which each test
// pass sets to its own marker value
type mockRecognizer struct {
	mu        sync.Mutex
	responses map[int][]layout.Fragment
	errs      map[int]error
	calls     int
}

func (m *mockRecognizer) Recognize(ctx context.Context, img image.Image) ([]layout.Fragment, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	marker := img.Bounds().Dx()
	if err, ok := m.errs[marker]; ok {
		return nil, err
	}
	return m.responses[marker], nil
}

// markedPass replaces the image with a blank one whose width identifies the pass
func markedPass(name string, marker int) Pass {
	return Pass{
		Name: name,
		Prepare: func(image.Image) image.Image {
			return image.NewGray(image.Rect(0, 0, marker, 1))
		},
	}
}

func words(texts ...string) []layout.Fragment {
	fragments := make([]layout.Fragment, 0, len(texts))
	for _, t := range texts {
		fragments = append(fragments, layout.Fragment{Text: t, Confidence: 1})
	}
	return fragments
}

var _ = Describe("MultiPass", func() {
	var (
		recognizer *mockRecognizer
		multiPass  *MultiPass
		result     *PassResult
		err        error
	)

	BeforeEach(func() {
		recognizer = &mockRecognizer{
			responses: map[int][]layout.Fragment{},
			errs:      map[int]error{},
		}
		multiPass = NewMultiPass(recognizer, markedPass("standard", 1), markedPass("enhanced", 2), markedPass("inverted", 3))
	})

	JustBeforeEach(func() {
		result, err = multiPass.Run(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	})

	When("the passes recognize different amounts of text", func() {
		BeforeEach(func() {
			recognizer.responses[1] = words("Milch", "1,29")
			recognizer.responses[2] = words("Bio", "Milch", "1,29")
			recognizer.responses[3] = words("M1lch")
		})

		It("should pick the pass with the longest text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(Equal("enhanced"))
			Expect(result.Fragments).To(HaveLen(3))
		})

		It("should run every pass", func() {
			Expect(recognizer.calls).To(Equal(3))
		})
	})

	When("two passes tie", func() {
		BeforeEach(func() {
			recognizer.responses[1] = words("abc")
			recognizer.responses[2] = words("a")
			recognizer.responses[3] = words("xyz")
		})

		It("should keep the earlier pass", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(Equal("standard"))
		})
	})

	When("one pass fails", func() {
		BeforeEach(func() {
			recognizer.errs[1] = errors.New("tesseract crashed")
			recognizer.responses[2] = words("Brot")
			recognizer.responses[3] = words("Brot", "0,99")
		})

		It("should still produce a winner", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(Equal("inverted"))
		})
	})

	When("every pass recognizes nothing", func() {
		It("should return the first pass with no fragments", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Pass).To(Equal("standard"))
			Expect(result.Fragments).To(BeEmpty())
		})
	})

	When("every pass fails", func() {
		BeforeEach(func() {
			recognizer.errs[1] = errors.New("first")
			recognizer.errs[2] = errors.New("second")
			recognizer.errs[3] = context.DeadlineExceeded
		})

		It("should report all failures", func() {
			Expect(result).To(BeNil())
			Expect(errors.Is(err, ErrAllPassesFailed)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("pass enhanced: second"))
		})
	})

	When("no passes are given", func() {
		BeforeEach(func() {
			multiPass = NewMultiPass(recognizer)
		})

		It("should use the default passes", func() {
			Expect(recognizer.calls).To(Equal(3))
			Expect(result.Pass).To(Equal("standard"))
		})
	})
})

var _ = Describe("textLength", func() {
	It("should count characters without surrounding whitespace", func() {
		Expect(textLength(words(" Käse ", "1,99"))).To(Equal(8))
	})
})
