package normalize

import (
	"math"

	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
)

var scaleCandidates = []int64{1000, 100, 10}

// HarmonizeScale corrects magnitude drift between the header amounts and the
// line items (the model occasionally returns 49999 where 4999 was printed).
// Each of the four fields is compared against the item sum; the first field
// whose ratio lands within tolerance of 1000, 100 or 10 fixes the factor, and
// all four fields are floor-divided by it. Callers should re-run
// ResolveAmounts afterwards.
func HarmonizeScale(h invoice.Header, itemsSum int64) invoice.Header {
	out := h.Clone()
	if itemsSum <= 0 {
		return out
	}

	scale := detectScaleFactor(out, itemsSum)
	if scale <= 1 {
		return out
	}

	for _, field := range []**int64{&out.SubtotalCents, &out.TaxCents, &out.TotalCents, &out.DiscountCents} {
		if *field != nil {
			scaled := clamp(**field / scale)
			*field = invoice.Cents(scaled)
		}
	}
	return out
}

func detectScaleFactor(h invoice.Header, itemsSum int64) int64 {
	for _, amount := range []*int64{h.TotalCents, h.SubtotalCents, h.TaxCents, h.DiscountCents} {
		if amount == nil || *amount <= 0 {
			continue
		}
		ratio := float64(*amount) / float64(itemsSum)
		for _, candidate := range scaleCandidates {
			tolerance := math.Max(0.05*float64(candidate), 0.5)
			if math.Abs(ratio-float64(candidate)) <= tolerance {
				return candidate
			}
		}
	}
	return 1
}
