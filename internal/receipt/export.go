package receipt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	scansSheet    = "Scans"
	productsSheet = "Products"
)

var (
	scanHeaders    = []string{"Scan ID", "Created", "Store", "Date", "Total", "Product Sum", "Products", "Confidence", "Rating", "Issues", "Barcode"}
	productHeaders = []string{"Scan ID", "Store", "Product", "Price", "Quantity", "Unit Price", "Weight", "Article", "Category", "Corrected"}
)

// ExportXLSX writes all stored scans into a workbook with one sheet of scans
// and one sheet of products, returned as bytes
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	scans, err := s.ListScans()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the scans sheet
	if err := f.SetSheetName(f.GetSheetName(0), scansSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(productsSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	writeRow(f, scansSheet, 1, toAny(scanHeaders)...)
	writeRow(f, productsSheet, 1, toAny(productHeaders)...)

	productRow := 2
	for i, scan := range scans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		writeRow(f, scansSheet, i+2,
			scan.ID,
			scan.CreatedAt.Format("2006-01-02 15:04"),
			scan.Store,
			formatDate(scan),
			amountCell(scan.Total),
			scan.ProductSum().InexactFloat64(),
			len(scan.Products),
			scan.Confidence.Overall,
			string(scan.Confidence.Rating),
			joinIssues(scan.Confidence.Issues),
			scan.Barcode,
		)

		for _, p := range scan.Products {
			var quantity any
			if p.Quantity != nil {
				quantity = *p.Quantity
			}
			writeRow(f, productsSheet, productRow,
				scan.ID,
				scan.Store,
				p.Name,
				p.Price.InexactFloat64(),
				quantity,
				amountCell(p.UnitPrice),
				amountCell(p.Weight),
				p.ArticleNumber,
				string(p.Category),
				p.Corrected,
			)
			productRow++
		}
	}

	_ = f.SetColWidth(scansSheet, "A", "A", 38) // id
	_ = f.SetColWidth(scansSheet, "B", "D", 18)
	_ = f.SetColWidth(scansSheet, "J", "J", 60) // issues
	_ = f.SetColWidth(scansSheet, "K", "K", 20)
	_ = f.SetColWidth(productsSheet, "A", "A", 38)
	_ = f.SetColWidth(productsSheet, "B", "B", 18)
	_ = f.SetColWidth(productsSheet, "C", "C", 36) // product

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing xlsx: %w", err)
	}

	slog.Info("Exported scans", "scans", len(scans), "products", productRow-2, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// amountCell leaves the cell empty for a missing amount
func amountCell(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

func formatDate(scan *Scan) string {
	if scan.Date == nil {
		return ""
	}
	return scan.Date.Format("2006-01-02")
}

func joinIssues(issues []string) string {
	out := ""
	for i, issue := range issues {
		if i > 0 {
			out += "; "
		}
		out += issue
	}
	return out
}
