package merchant

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	Describe("DefaultRegistry", func() {
		var (
			registry *Registry
			err      error
		)

		JustBeforeEach(func() {
			registry, err = DefaultRegistry()
		})

		It("should load the built-in profiles", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.Len()).To(BeNumerically(">=", 5))
		})

		It("should keep declaration order", func() {
			Expect(err).NotTo(HaveOccurred())
			profiles := registry.Profiles()
			Expect(profiles[0].Name).To(Equal("ALDI"))
			Expect(profiles[1].Name).To(Equal("LIDL"))
		})

		It("should compile the ALDI profile flags", func() {
			aldi, ok := registry.Get("aldi")
			Expect(ok).To(BeTrue())
			Expect(aldi.PriceLocation).To(Equal(NextLine))
			Expect(aldi.HasArticleNumbers).To(BeTrue())
			Expect(aldi.ArticlePattern.MatchString("605084")).To(BeTrue())
			Expect(aldi.IsEnd("Betrag 3,79 EUR")).To(BeTrue())
			Expect(aldi.IsIgnored("PFAND 0,25")).To(BeTrue())
		})

		It("should provide a generic fallback profile", func() {
			generic := registry.Generic()
			Expect(generic.Generic()).To(BeTrue())
			Expect(generic.PriceLocation).To(Equal(SameLine))
			Expect(generic.Variants).To(BeEmpty())
		})

		It("should return a copy of the profile list", func() {
			profiles := registry.Profiles()
			profiles[0] = nil
			Expect(registry.Profiles()[0]).NotTo(BeNil())
		})
	})

	Describe("LoadRegistry", func() {
		var (
			data     string
			registry *Registry
			err      error
		)

		JustBeforeEach(func() {
			registry, err = LoadRegistry([]byte(data))
		})

		When("the document is valid", func() {
			BeforeEach(func() {
				data = `
profiles:
  - name: NETTO
    variants: ["NETTO", "NETTO MARKEN-DISCOUNT"]
    price_location: same_line
    markers:
      end: ['^summe']
    footer_keywords: ["SUMME"]
`
			})

			It("should compile the profile with defaults", func() {
				Expect(err).NotTo(HaveOccurred())
				netto, ok := registry.Get("NETTO")
				Expect(ok).To(BeTrue())
				Expect(netto.TotalPattern).NotTo(BeNil())
				Expect(netto.DateLayouts).To(Equal(DefaultDateLayouts))
			})
		})

		When("a field is unknown", func() {
			BeforeEach(func() {
				data = `
profiles:
  - name: NETTO
    colour: yellow
`
			})

			It("should fail schema validation", func() {
				Expect(err).To(MatchError(ErrInvalidProfile))
				Expect(registry).To(BeNil())
			})
		})

		When("the price location is unknown", func() {
			BeforeEach(func() {
				data = `
profiles:
  - name: NETTO
    price_location: upside_down
`
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ErrInvalidProfile))
			})
		})

		When("a pattern does not compile", func() {
			BeforeEach(func() {
				data = `
profiles:
  - name: NETTO
    patterns:
      total: '(?P<total>[0-9'
`
			})

			It("should return an error", func() {
				Expect(err).To(MatchError(ErrInvalidProfile))
				Expect(err.Error()).To(ContainSubstring("total pattern"))
			})
		})

		When("a pattern lacks a required group", func() {
			BeforeEach(func() {
				data = `
profiles:
  - name: NETTO
    patterns:
      product: '^(.+) (\d+,\d{2})$'
`
			})

			It("should return an error naming the group", func() {
				Expect(err).To(MatchError(ErrInvalidProfile))
				Expect(err.Error()).To(ContainSubstring(`"name"`))
			})
		})

		When("two profiles share a name", func() {
			BeforeEach(func() {
				data = `
profiles:
  - name: NETTO
  - name: netto
`
			})

			It("should return ErrDuplicateProfile", func() {
				Expect(err).To(MatchError(ErrDuplicateProfile))
			})
		})

		When("the YAML is malformed", func() {
			BeforeEach(func() {
				data = "profiles: [\n"
			})

			It("should return an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("LoadRegistryFile", func() {
		It("should read profiles from disk", func() {
			path := filepath.Join(GinkgoT().TempDir(), "profiles.yaml")
			Expect(os.WriteFile(path, []byte("profiles:\n  - name: NORMA\n"), 0644)).To(Succeed())

			registry, err := LoadRegistryFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.Len()).To(Equal(1))
		})

		It("should fail for a missing file", func() {
			_, err := LoadRegistryFile(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Compile", func() {
	It("should default the variants to the name", func() {
		p, err := Compile(ProfileSpec{Name: "Globus"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Variants).To(Equal([]string{"Globus"}))
		Expect(p.PriceLocation).To(Equal(SameLine))
	})

	It("should use the description pattern for next_line profiles", func() {
		p, err := Compile(ProfileSpec{Name: "Hofer", PriceLocation: NextLine})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.ProductPattern.String()).To(Equal(DefaultDescriptionPattern))
	})

	It("should reject an empty name", func() {
		_, err := Compile(ProfileSpec{Name: "  "})
		Expect(err).To(MatchError(ErrInvalidProfile))
	})

	It("should match markers case-insensitively", func() {
		p, err := Compile(ProfileSpec{Name: "Globus", Markers: MarkerSpec{End: []string{"^summe"}}})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.IsEnd("SUMME 3,00")).To(BeTrue())
		Expect(p.IsStart("SUMME 3,00")).To(BeFalse())
	})
})
