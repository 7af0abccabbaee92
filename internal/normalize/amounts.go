// Package normalize repairs the known categories of model confusion between
// tax-exclusive and tax-inclusive figures. Every stage is a pure
// transformation over an owned header snapshot: no stage mutates its input
// and no stage returns an error — when a correction's sanity bound fails the
// stage falls back to a no-op, preferring a flagged-but-inconsistent result
// over aborting the run.
package normalize

import (
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
)

// ResolveAmounts detects and fixes the four known confusion patterns between
// "Net worth" (subtotal), "VAT" (tax) and "Gross worth" (total) columns, then
// infers a single missing field from total = subtotal + tax - discount and
// clamps all four fields to non-negative integers.
//
// At most one pattern applies per pass, in priority order:
//
//	gross swapped into subtotal   (subtotal ≈ total)
//	net duplicated into tax       (subtotal == tax)
//	gross duplicated into tax     (tax == total)
//	gross in tax, net in total    (tax > total, subtotal == total)
func ResolveAmounts(h invoice.Header) invoice.Header {
	out := h.Clone()

	sub, hasSub := deref(out.SubtotalCents)
	tax, hasTax := deref(out.TaxCents)
	tot, hasTot := deref(out.TotalCents)
	discount := invoice.CentsOr(out.DiscountCents, 0)
	if discount < 0 {
		discount = 0
	}

	if hasSub && hasTax && hasTot {
		switch {
		// The model put gross worth in the subtotal field.
		case float64(sub) >= 0.95*float64(tot) && tax+discount < tot && tax > 0:
			newSub := tax
			newTax := tot - newSub + discount
			if newTax > 0 && newTax < newSub {
				sub, tax = newSub, newTax
			}

		// The model read net worth into both subtotal and tax.
		case sub == tax && tot > sub && tot > 0:
			newTax := tot - sub + discount
			if newTax > 0 && newTax < sub {
				tax = newTax
			}

		// The model read gross worth into both tax and total.
		case tax == tot && sub < tot && sub > 0:
			newTax := tot - sub + discount
			if newTax > 0 && newTax < sub {
				tax = newTax
			}

		// Gross worth landed in tax and net worth was duplicated into
		// total. Reinterpret total as the tax value, then recompute tax.
		case tax > tot && sub == tot && sub > 0:
			tot = tax
			tax = tot - sub + discount
		}
	}

	// Infer exactly the missing fields that the identity determines.
	if !hasSub && hasTot {
		t := int64(0)
		if hasTax {
			t = tax
		}
		if inferred := tot - t + discount; inferred >= 0 {
			sub, hasSub = inferred, true
		}
	}
	if !hasTax && hasSub && hasTot {
		if inferred := tot - sub + discount; inferred >= 0 {
			tax, hasTax = inferred, true
		}
	}
	if !hasTot && hasSub {
		t := int64(0)
		if hasTax {
			t = tax
		}
		if inferred := sub + t - discount; inferred >= 0 {
			tot, hasTot = inferred, true
		}
	}

	out.SubtotalCents = clampOpt(sub, hasSub)
	out.TaxCents = clampOpt(tax, hasTax)
	out.TotalCents = clampOpt(tot, hasTot)
	out.DiscountCents = invoice.Cents(clamp(discount))
	return out
}

func deref(p *int64) (int64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampOpt(v int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	return invoice.Cents(clamp(v))
}
