// Package invoice owns the invoice_v1 payload contract: the typed document
// model produced from model output and the strict parser that builds it.
package invoice

import "github.com/joseph-ayodele/invoice-pipeline/constants"

// Document is the full invoice_v1 payload: header + ordered items + notes.
// It is mutated through the normalization stages and then frozen into the
// persisted payload.
type Document struct {
	SchemaVersion string  `json:"schema_version"`
	Invoice       Header  `json:"invoice"`
	Items         []Item  `json:"items"`
	Notes         *Notes  `json:"notes,omitempty"`
}

// Header carries the invoice-level fields. Monetary fields are nullable
// non-negative integers in minor currency units (cents); nil means the model
// did not produce the field and it may be inferred during normalization.
type Header struct {
	InvoiceNumber *string `json:"invoice_number"`
	InvoiceDate   string  `json:"invoice_date"` // YYYY-MM-DD
	VendorName    string  `json:"vendor_name"`
	VendorTaxID   *string `json:"vendor_tax_id"`
	BuyerName     *string `json:"buyer_name"`
	CurrencyCode  string  `json:"currency_code"`
	SubtotalCents *int64  `json:"subtotal_cents"`
	TaxCents      *int64  `json:"tax_cents"`
	TotalCents    *int64  `json:"total_cents"`
	DiscountCents *int64  `json:"discount_cents"`
}

// Item is one line item. Idx is 1-based and contiguous after reconciliation.
type Item struct {
	Idx            int      `json:"idx"`
	Description    string   `json:"description"`
	Qty            *float64 `json:"qty"`
	UnitPriceCents *int64   `json:"unit_price_cents"`
	LineTotalCents *int64   `json:"line_total_cents"`
	Category       string   `json:"category"`
}

type Notes struct {
	Warnings   []string `json:"warnings,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Clone returns a deep copy of the document so normalization stages can work
// on owned snapshots.
func (d *Document) Clone() *Document {
	out := &Document{
		SchemaVersion: d.SchemaVersion,
		Invoice:       d.Invoice.Clone(),
		Items:         make([]Item, len(d.Items)),
	}
	for i, it := range d.Items {
		out.Items[i] = it.Clone()
	}
	if d.Notes != nil {
		n := Notes{Confidence: clonePtr(d.Notes.Confidence)}
		if d.Notes.Warnings != nil {
			n.Warnings = append([]string(nil), d.Notes.Warnings...)
		}
		out.Notes = &n
	}
	return out
}

func (h Header) Clone() Header {
	h.InvoiceNumber = clonePtr(h.InvoiceNumber)
	h.VendorTaxID = clonePtr(h.VendorTaxID)
	h.BuyerName = clonePtr(h.BuyerName)
	h.SubtotalCents = clonePtr(h.SubtotalCents)
	h.TaxCents = clonePtr(h.TaxCents)
	h.TotalCents = clonePtr(h.TotalCents)
	h.DiscountCents = clonePtr(h.DiscountCents)
	return h
}

func (it Item) Clone() Item {
	it.Qty = clonePtr(it.Qty)
	it.UnitPriceCents = clonePtr(it.UnitPriceCents)
	it.LineTotalCents = clonePtr(it.LineTotalCents)
	return it
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Cents wraps a literal minor-unit amount into the nullable representation.
func Cents(v int64) *int64 { return &v }

// CentsOr dereferences a nullable amount with a default.
func CentsOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}

// NewDocument returns an empty invoice_v1 document shell.
func NewDocument() *Document {
	return &Document{SchemaVersion: constants.SchemaVersion}
}
