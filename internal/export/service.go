package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
	"github.com/joseph-ayodele/invoice-pipeline/internal/store"
)

// Service is a tiny façade over the store that produces XLSX bytes for
// exports.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// ExportInvoicesXLSX returns an XLSX workbook (as bytes) with one row per
// stored invoice. Payloads that no longer decode are skipped with a warning
// rather than failing the whole export.
func (s *Service) ExportInvoicesXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Invoice Date",
		"Vendor",
		"Invoice No",
		"Currency",
		"Subtotal",
		"Tax",
		"Discount",
		"Total",
		"Items",
		"Warnings",
		"Source Path",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	skipped := 0
	for _, rec := range recs {
		var doc invoice.Document
		if err := json.Unmarshal(rec.Payload, &doc); err != nil {
			s.logger.Warn("export.payload.skipped", "content_hash", rec.ContentHash, "error", err)
			skipped++
			continue
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, doc.Invoice.InvoiceDate)
		write(2, doc.Invoice.VendorName)
		if doc.Invoice.InvoiceNumber != nil {
			write(3, *doc.Invoice.InvoiceNumber)
		}
		write(4, doc.Invoice.CurrencyCode)
		write(5, majorUnits(doc.Invoice.SubtotalCents))
		write(6, majorUnits(doc.Invoice.TaxCents))
		write(7, majorUnits(doc.Invoice.DiscountCents))
		write(8, majorUnits(doc.Invoice.TotalCents))
		write(9, len(doc.Items))
		if doc.Notes != nil {
			write(10, len(doc.Notes.Warnings))
		} else {
			write(10, 0)
		}
		write(11, rec.SourcePath)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 32) // vendor
	_ = f.SetColWidth(sheet, "C", "C", 18) // invoice no
	_ = f.SetColWidth(sheet, "E", "H", 12) // amounts
	_ = f.SetColWidth(sheet, "K", "K", 60) // path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", row-2,
		"skipped", skipped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// majorUnits renders a nullable minor-unit amount as a decimal string, empty
// when absent.
func majorUnits(cents *int64) string {
	if cents == nil {
		return ""
	}
	v := *cents
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
