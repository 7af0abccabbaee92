package textparse

import (
	"regexp"
	"strings"
)

// Bucket is a canonical summary field recovered from raw document text.
type Bucket string

const (
	BucketSubtotal Bucket = "subtotal"
	BucketDiscount Bucket = "discount"
	BucketAddition Bucket = "addition" // tax/VAT/shipping/fees-class charges
	BucketTotal    Bucket = "total"
)

// maxLabelAmountDistance bounds how far (in characters) an amount may trail
// its label and still be associated with it. 80 chars covers the same line
// plus one OCR line break.
const maxLabelAmountDistance = 80

var (
	summaryLabelPattern = regexp.MustCompile(
		`(?i)(Subtotal|Sub-total|Total|Balance Due|Discount(?:\s*\([^)]*\))?|` +
			`Shipping|Freight|Delivery|Handling|Fees|Charge|Tax|` +
			`Sales Tax|VAT|GST|IVA|Duty)\s*:?`)

	summaryAmountPattern = regexp.MustCompile(
		`(?:[$€£]\s*)?([-+]?\d[\d,]*[.,]\d{1,2})`)

	taxIDSuffix = regexp.MustCompile(`(?i)^\s*id\b`)
)

type textMatch struct {
	start int
	end   int
	text  string // captured group
}

// ExtractSummary scans raw document text for summary labels and associates
// each with a following amount. A solitary label takes the nearest amount
// before the next label; a run of consecutive labels with no amounts between
// them is matched positionally against the amounts that follow the run.
// "addition" amounts accumulate, the other buckets keep the first hit.
// Amounts followed by '%' (or a closing parenthesis in a discount context)
// are percentages, not money, and are skipped.
func ExtractSummary(text string) map[Bucket]int64 {
	summary := make(map[Bucket]int64)

	labels := findLabels(text)
	if len(labels) == 0 {
		return summary
	}
	amounts := findValidAmounts(text)
	if len(amounts) == 0 {
		return summary
	}

	used := make(map[int]bool, len(amounts))

	record := func(label string, cents int64) {
		bucket, ok := NormalizeSummaryLabel(label)
		if !ok {
			return
		}
		if bucket == BucketAddition {
			summary[BucketAddition] += cents
			return
		}
		if _, exists := summary[bucket]; !exists {
			summary[bucket] = cents
		}
	}

	i := 0
	for i < len(labels) {
		group := []int{i}
		j := i + 1

		// Extend the group while no unused amount sits between the labels.
		for j < len(labels) {
			between := false
			for k, a := range amounts {
				if used[k] {
					continue
				}
				if a.start >= labels[j-1].end && a.start < labels[j].start {
					between = true
					break
				}
			}
			if between {
				break
			}
			group = append(group, j)
			j++
		}

		if len(group) == 1 {
			label := labels[i]
			nextLabelStart := len(text)
			if i+1 < len(labels) {
				nextLabelStart = labels[i+1].start
			}

			closest := -1
			minDistance := maxLabelAmountDistance + 1
			for k, a := range amounts {
				if used[k] {
					continue
				}
				if a.start < label.end || a.start >= nextLabelStart {
					continue
				}
				distance := a.start - label.end
				if distance > maxLabelAmountDistance {
					continue
				}
				if distance < minDistance {
					minDistance = distance
					closest = k
				}
			}
			if closest >= 0 {
				if cents, ok := ParseAmountToCents(amounts[closest].text); ok {
					record(label.text, cents)
					used[closest] = true
				}
			}
		} else {
			// Positional association: amounts after the last label, in order.
			// When labels outnumber amounts the trailing labels are dropped.
			lastEnd := labels[group[len(group)-1]].end
			var after []int
			for k, a := range amounts {
				if used[k] {
					continue
				}
				if a.start >= lastEnd && a.start-lastEnd <= maxLabelAmountDistance {
					after = append(after, k)
				}
			}
			for pos, gi := range group {
				if pos >= len(after) {
					break
				}
				k := after[pos]
				cents, ok := ParseAmountToCents(amounts[k].text)
				if !ok {
					continue
				}
				record(labels[gi].text, cents)
				used[k] = true
			}
		}

		if j > i {
			i = j
		} else {
			i++
		}
	}

	return summary
}

// NormalizeSummaryLabel maps a raw label onto its canonical bucket.
func NormalizeSummaryLabel(label string) (Bucket, bool) {
	lower := strings.ToLower(label)

	if strings.Contains(lower, "subtotal") || strings.Contains(lower, "sub-total") {
		return BucketSubtotal, true
	}
	if strings.Contains(lower, "discount") || strings.Contains(lower, "rebate") {
		return BucketDiscount, true
	}
	if strings.Contains(lower, "total") || strings.Contains(lower, "balance due") {
		return BucketTotal, true
	}

	additions := []string{
		"addition", "shipping", "freight", "delivery", "handling",
		"fees", "charge", "tax", "vat", "gst", "iva", "duty",
	}
	for _, kw := range additions {
		if strings.Contains(lower, kw) {
			return BucketAddition, true
		}
	}
	return "", false
}

func findLabels(text string) []textMatch {
	var out []textMatch
	for _, idx := range summaryLabelPattern.FindAllStringSubmatchIndex(text, -1) {
		label := text[idx[2]:idx[3]]
		// "Tax Id" is an identifier, not a charge.
		if strings.EqualFold(label, "tax") && taxIDSuffix.MatchString(text[idx[1]:]) {
			continue
		}
		out = append(out, textMatch{start: idx[0], end: idx[1], text: label})
	}
	return out
}

func findValidAmounts(text string) []textMatch {
	var out []textMatch
	for _, idx := range summaryAmountPattern.FindAllStringSubmatchIndex(text, -1) {
		after := strings.TrimSpace(sliceAt(text, idx[1], idx[1]+3))
		beforeStart := idx[0] - 15
		if beforeStart < 0 {
			beforeStart = 0
		}
		before := strings.ToLower(text[beforeStart:idx[0]])

		if strings.HasPrefix(after, "%") ||
			(strings.HasPrefix(after, ")") && strings.Contains(before, "discount")) {
			continue
		}
		out = append(out, textMatch{start: idx[0], end: idx[1], text: text[idx[2]:idx[3]]})
	}
	return out
}

func sliceAt(text string, start, end int) string {
	if start > len(text) {
		return ""
	}
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
