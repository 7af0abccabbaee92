package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
	"github.com/joseph-ayodele/invoice-pipeline/internal/textparse"
)

// stubCompletion produces a deterministic invoice_v1 payload from text
// heuristics alone, for local development without an API key. It mirrors the
// shape of a real completion so the downstream parser cannot tell the
// difference.
func stubCompletion(messages []Message) (string, error) {
	text := extractDocumentText(messages)

	doc := invoice.NewDocument()
	doc.Invoice.InvoiceDate = textparse.ExtractDate(text)
	doc.Invoice.VendorName = textparse.InferVendor(text)
	doc.Invoice.CurrencyCode = "UNK"
	if no := textparse.ExtractInvoiceNumber(text); no != "" {
		doc.Invoice.InvoiceNumber = &no
	}

	if d, ok := textparse.FindAmount(text, []string{"total", "amount due", "balance due", "gross"}); ok {
		doc.Invoice.TotalCents = invoice.Cents(textparse.ToCents(d))
	}
	if d, ok := textparse.FindAmount(text, []string{"subtotal", "sub-total", "net worth"}); ok {
		doc.Invoice.SubtotalCents = invoice.Cents(textparse.ToCents(d))
	}
	if d, ok := textparse.FindAmount(text, []string{"tax", "vat", "gst"}); ok {
		doc.Invoice.TaxCents = invoice.Cents(textparse.ToCents(d))
	}
	doc.Invoice.DiscountCents = invoice.Cents(0)

	qty := 1.0
	doc.Items = []invoice.Item{{
		Idx:         1,
		Description: "Total invoice amount",
		Qty:         &qty,
		LineTotalCents: invoice.Cents(invoice.CentsOr(doc.Invoice.TotalCents,
			invoice.CentsOr(doc.Invoice.SubtotalCents, 0))),
		Category: "Other",
	}}

	confidence := 0.0
	doc.Notes = &invoice.Notes{
		Warnings:   []string{"offline stub extraction, amounts are heuristic"},
		Confidence: &confidence,
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal stub payload: %w", err)
	}
	return string(payload), nil
}

// extractDocumentText pulls the document body out of the user prompt,
// skipping the instruction scaffolding around it.
func extractDocumentText(messages []Message) string {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		body := m.Content
		if _, after, ok := strings.Cut(body, "### Document text\n"); ok {
			body = after
		}
		if before, _, ok := strings.Cut(body, "\n### "); ok {
			body = before
		}
		return strings.TrimSpace(body)
	}
	return ""
}
