package receipt

import (
	"context"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/pantry-scan/internal/classify"
	"github.com/zombor/pantry-scan/internal/confidence"
	"github.com/zombor/pantry-scan/internal/extraction"
	"github.com/zombor/pantry-scan/internal/merchant"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newScan := func(id string) *Scan {
		total := decimal.RequireFromString("3.79")
		date := time.Date(2026, 5, 24, 0, 0, 0, 0, time.UTC)
		qty := 2
		return &Scan{
			ID:    id,
			Lines: []string{"ALDI SÜD", "Milch", "1,29", "Betrag 3,79 EUR"},
			Match: &merchant.Match{Merchant: "ALDI", Confidence: 0.85},
			Store: "ALDI",
			Products: []Product{
				{
					Product:  extraction.Product{Name: "Milch", Price: decimal.RequireFromString("2.58"), Quantity: &qty},
					Category: classify.Fridge, CategoryConfidence: 0.9,
				},
				{
					Product: extraction.Product{Name: "Brot", Price: decimal.RequireFromString("1.21")},
				},
			},
			Total: &total,
			Date:  &date,
			Confidence: confidence.Result{
				Overall: 0.91,
				Rating:  confidence.RatingHigh,
				Factors: map[confidence.Factor]float64{confidence.FactorTotalConsistency: 1},
			},
			CreatedAt: time.Date(2026, 5, 24, 12, 0, 0, 0, time.UTC),
		}
	}

	Describe("SaveScan and GetScan", func() {
		It("should round-trip the scan", func() {
			Expect(db.SaveScan(newScan("scan-1"))).To(Succeed())

			scan, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(scan.Store).To(Equal("ALDI"))
			Expect(scan.Match.Confidence).To(Equal(0.85))
			Expect(scan.Total.Equal(decimal.RequireFromString("3.79"))).To(BeTrue())
			Expect(scan.Date.Equal(time.Date(2026, 5, 24, 0, 0, 0, 0, time.UTC))).To(BeTrue())
			Expect(scan.Products).To(HaveLen(2))
			Expect(scan.Products[0].Name).To(Equal("Milch"))
			Expect(*scan.Products[0].Quantity).To(Equal(2))
			Expect(scan.Products[0].Category).To(Equal(classify.Fridge))
			Expect(scan.ProductSum().StringFixed(2)).To(Equal("3.79"))
			Expect(scan.Confidence.Factors).To(HaveKeyWithValue(confidence.FactorTotalConsistency, 1.0))
		})

		It("should overwrite a scan saved under the same ID", func() {
			scan := newScan("scan-1")
			Expect(db.SaveScan(scan)).To(Succeed())
			scan.Products[1].Category = classify.Pantry
			Expect(db.SaveScan(scan)).To(Succeed())

			stored, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Products[1].Category).To(Equal(classify.Pantry))
		})

		It("should report a missing scan as not found", func() {
			_, err := db.GetScan("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListScans", func() {
		It("should return an empty list when there are no scans", func() {
			scans, err := db.ListScans()
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(BeEmpty())
		})

		It("should return every scan", func() {
			Expect(db.SaveScan(newScan("scan-1"))).To(Succeed())
			Expect(db.SaveScan(newScan("scan-2"))).To(Succeed())

			scans, err := db.ListScans()
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(2))
		})
	})

	Describe("DeleteScan", func() {
		It("should remove the scan", func() {
			Expect(db.SaveScan(newScan("scan-1"))).To(Succeed())
			Expect(db.DeleteScan("scan-1")).To(Succeed())

			_, err := db.GetScan("scan-1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should report a missing scan as not found", func() {
			Expect(db.DeleteScan("missing")).To(MatchError(ErrNotFound))
		})
	})

	Describe("corrections", func() {
		BeforeEach(func() {
			db.now = func() time.Time { return time.Date(2026, 5, 25, 8, 0, 0, 0, time.UTC) }
		})

		It("should return corrections in recording order", func() {
			ctx := context.Background()
			Expect(db.RecordCorrection(ctx, "Hafermilch", classify.Pantry, classify.Fridge)).To(Succeed())
			Expect(db.RecordCorrection(ctx, "Eiswürfel", classify.Freezer, classify.Other)).To(Succeed())

			corrections, err := db.ListCorrections()
			Expect(err).NotTo(HaveOccurred())
			Expect(corrections).To(HaveLen(2))
			Expect(corrections[0].Name).To(Equal("Hafermilch"))
			Expect(corrections[0].Assigned).To(Equal(classify.Pantry))
			Expect(corrections[0].Predicted).To(Equal(classify.Fridge))
			Expect(corrections[0].CreatedAt).To(Equal(time.Date(2026, 5, 25, 8, 0, 0, 0, time.UTC)))
			Expect(corrections[1].Name).To(Equal("Eiswürfel"))
		})

		It("should keep corrections after reopening", func() {
			Expect(db.RecordCorrection(context.Background(), "Hafermilch", classify.Pantry, classify.Fridge)).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			corrections, err := db.ListCorrections()
			Expect(err).NotTo(HaveOccurred())
			Expect(corrections).To(HaveLen(1))
		})
	})
})
