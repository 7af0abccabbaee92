package textparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	invoiceNoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)invoice\s*no\.?\s*([\w-]+)`),
		regexp.MustCompile(`(?i)invoice\s*#\s*([\w-]+)`),
	}

	isoDatePattern  = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	euroDatePattern = regexp.MustCompile(`(\d{2})[/-](\d{2})[/-](\d{4})`)
	usDatePattern   = regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})`)
)

// ExtractInvoiceNumber searches common invoice-number patterns. Returns ""
// when no pattern matches.
func ExtractInvoiceNumber(text string) string {
	for _, p := range invoiceNoPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

// ExtractDate finds the first date in text and normalizes it to ISO
// YYYY-MM-DD. ISO is preferred, then DD/MM/YYYY, then YYYY/MM/DD. Falls back
// to today's date so the offline stub always produces a parseable payload.
func ExtractDate(text string) string {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := euroDatePattern.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])
	}
	if m := usDatePattern.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}
	return time.Now().UTC().Format("2006-01-02")
}

// FindAmount scans lines for any of the keywords and extracts the first
// numeric token on a matching line.
func FindAmount(text string, keywords []string) (decimal.Decimal, bool) {
	for _, line := range Lines(text) {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				if d, ok := ExtractNumber(line); ok {
					return d, true
				}
			}
		}
	}
	return decimal.Zero, false
}

// Lines returns the non-empty, trimmed lines of text.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// InferVendor picks the first non-trivial line that does not look like a
// label. A crude heuristic, only used by the offline stub.
func InferVendor(text string) string {
	for _, line := range Lines(text) {
		lower := strings.ToLower(line)
		if len(line) > 2 && !strings.Contains(lower, "invoice") && !strings.Contains(line, ":") {
			if len(line) > 80 {
				return line[:80]
			}
			return line
		}
	}
	return "Demo Vendor"
}

// StripCodeFence removes a surrounding markdown code fence, with or without
// a "json" language tag. Models wrap payloads this way despite instructions.
func StripCodeFence(payload string) string {
	candidate := strings.TrimSpace(payload)
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimSpace(strings.Trim(candidate, "`"))
		candidate = strings.TrimSpace(strings.TrimPrefix(candidate, "json"))
	}
	return candidate
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// CompactText trims tabs and excessive blank lines while preserving
// horizontal spacing. OCR encodes column structure (vendor vs buyer) via
// runs of spaces; collapsing them makes the model mix the two sides up.
func CompactText(text string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
