package normalize

import (
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
	"github.com/joseph-ayodele/invoice-pipeline/internal/textparse"
)

// ReconcileItems runs the two ordered reconciliation passes over the line
// items: (a) drop items that merely echo a summary row, (b) merge descriptor
// continuations into the preceding retained item. The result is re-indexed
// 1..N. Running it on its own output changes nothing.
func ReconcileItems(items []invoice.Item, h invoice.Header) []invoice.Item {
	if len(items) == 0 {
		return items
	}

	var merged []invoice.Item
	for _, item := range items {
		item = item.Clone()
		if len(merged) == 0 {
			merged = append(merged, item)
			continue
		}

		if isSummaryEcho(item, h) {
			continue
		}

		if isDescriptorLine(item, merged[len(merged)-1], h) {
			prev := &merged[len(merged)-1]
			prev.Description = strings.TrimSpace(prev.Description + " " + item.Description)
			continue
		}

		merged = append(merged, item)
	}

	for i := range merged {
		merged[i].Idx = i + 1
	}
	return merged
}

// isSummaryEcho reports whether the item restates a summary row (discount,
// shipping, tax, ...) already captured in the header fields.
func isSummaryEcho(item invoice.Item, h invoice.Header) bool {
	if item.Description == "" {
		return false
	}

	description := strings.ToLower(item.Description)
	for _, kw := range constants.SummaryKeywords {
		if strings.Contains(description, kw) {
			return true
		}
	}

	if item.LineTotalCents != nil {
		if h.DiscountCents != nil && *item.LineTotalCents == *h.DiscountCents {
			return true
		}
		if h.TaxCents != nil && *item.LineTotalCents == *h.TaxCents {
			return true
		}
	}
	return false
}

// isDescriptorLine reports whether the item is a continuation of the previous
// one (SKU, category, free-text note) rather than a priced line of its own.
func isDescriptorLine(item, previous invoice.Item, h invoice.Header) bool {
	if item.Description == "" {
		return false
	}
	if item.UnitPriceCents != nil && *item.UnitPriceCents != 0 {
		return false
	}
	if item.Qty != nil && *item.Qty != 0 && *item.Qty != 1 {
		return false
	}
	if textparse.ContainsCurrencyAmount(item.Description) {
		return false
	}

	if item.LineTotalCents == nil {
		return true
	}
	total := *item.LineTotalCents
	if total == 0 {
		return true
	}
	if previous.LineTotalCents != nil && total == *previous.LineTotalCents {
		return true
	}
	if h.DiscountCents != nil && total == *h.DiscountCents {
		return true
	}
	if h.TaxCents != nil && total == *h.TaxCents {
		return true
	}
	return false
}

// ItemsSum totals the retained line items.
func ItemsSum(items []invoice.Item) int64 {
	var sum int64
	for _, it := range items {
		sum += invoice.CentsOr(it.LineTotalCents, 0)
	}
	return sum
}

// ExpectedItemsTotal picks whichever populated header figure (subtotal or
// total) sits closest to the item sum, for the consistency check.
func ExpectedItemsTotal(h invoice.Header, itemsSum int64) int64 {
	var candidates []int64
	if h.SubtotalCents != nil {
		candidates = append(candidates, *h.SubtotalCents)
	}
	if h.TotalCents != nil {
		candidates = append(candidates, *h.TotalCents)
	}
	if len(candidates) == 0 {
		return itemsSum
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if abs64(itemsSum-c) < abs64(itemsSum-best) {
			best = c
		}
	}
	return best
}

// TotalsConsistent checks total = subtotal + tax - discount within the 0.1%
// rounding tolerance. Headers with a missing figure cannot be judged and
// count as consistent.
func TotalsConsistent(h invoice.Header) bool {
	if h.SubtotalCents == nil || h.TaxCents == nil || h.TotalCents == nil {
		return true
	}
	discount := invoice.CentsOr(h.DiscountCents, 0)
	expected := *h.SubtotalCents + *h.TaxCents - discount
	return abs64(expected-*h.TotalCents) <= toleranceFor(*h.TotalCents)
}

// mismatchPhrases identify warnings that claim a totals disagreement.
var mismatchPhrases = []string{
	"total and subtotal disagree",
	"total line items and invoice total disagree",
	"line item sum does not match",
	"total line item amount",
}

// FilterFalsePositiveWarnings drops totals-mismatch warnings when the
// header's algebraic identity already holds — those are rounding artifacts
// or stale complaints from the model, not real inconsistencies.
func FilterFalsePositiveWarnings(warnings []string, h invoice.Header) []string {
	if len(warnings) == 0 || !TotalsConsistent(h) {
		return warnings
	}

	var cleaned []string
	for _, w := range warnings {
		lower := strings.ToLower(w)
		suppress := false
		for _, phrase := range mismatchPhrases {
			if strings.Contains(lower, phrase) {
				suppress = true
				break
			}
		}
		if !suppress {
			cleaned = append(cleaned, w)
		}
	}
	return cleaned
}
