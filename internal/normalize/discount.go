package normalize

import (
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
)

// RecomputeDiscount derives the discount from the identity
// discount = subtotal + tax - total, unless the caller has locked it (for
// example when a corroborated summary value was applied). Small negative
// results within 0.1% of the total are rounding noise and snap to zero;
// larger negatives mean the header is inconsistent in a way a discount
// cannot explain, so the field is left untouched.
func RecomputeDiscount(h invoice.Header, locked bool) invoice.Header {
	out := h.Clone()
	if locked {
		return out
	}

	sub, hasSub := deref(out.SubtotalCents)
	tot, hasTot := deref(out.TotalCents)
	if !hasSub || !hasTot {
		return out
	}

	additions := invoice.CentsOr(out.TaxCents, 0)
	expected := sub + additions - tot
	tolerance := toleranceFor(tot)

	if expected < 0 && -expected <= tolerance {
		expected = 0
	}
	if expected < 0 {
		return out
	}

	current := invoice.CentsOr(out.DiscountCents, 0)
	if abs64(expected-current) > tolerance {
		out.DiscountCents = invoice.Cents(expected)
	}
	return out
}

// toleranceFor is the shared 0.1%-of-total rounding tolerance, at least one
// minor unit.
func toleranceFor(total int64) int64 {
	if total < 1 {
		total = 1
	}
	if t := total / 1000; t > 1 {
		return t
	}
	return 1
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
