package textparse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	numberPattern = regexp.MustCompile(`[-+]?\d[\d., ]*`)
	nonNumeric    = regexp.MustCompile(`[^0-9.,]`)
	currencyToken = regexp.MustCompile(`[$€£]|(\d+[.,]\d{1,2})`)
)

// ParseAmountToCents parses a monetary string into minor currency units.
// Locale separators are resolved by the rightmost-separator rule:
//
//	"1,234.56" -> 123456    (US)
//	"1.234,56" -> 123456    (EU)
//	"49,99"    -> 4999      (single comma treated as decimal)
func ParseAmountToCents(value string) (int64, bool) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, false
	}

	for _, sym := range []string{"$", "€", "£", " "} {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}

	commas := strings.Count(cleaned, ",")
	dots := strings.Count(cleaned, ".")
	switch {
	case commas > 1 && dots == 0:
		// thousands only: 1,234,567
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case dots > 1 && commas == 0:
		// thousands only: 1.234.567
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case dots > 0 && commas > 0:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			// EU: 1.234,56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			// US: 1,234.56
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	default:
		// single separator: comma is decimal (EU default)
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	return ToCents(d), true
}

// ExtractNumber finds the first numeric token in text and normalizes its
// locale separators into a decimal.
func ExtractNumber(text string) (decimal.Decimal, bool) {
	raw := numberPattern.FindString(text)
	if raw == "" {
		return decimal.Zero, false
	}
	normalized := nonNumeric.ReplaceAllString(raw, "")

	commas := strings.Count(normalized, ",")
	dots := strings.Count(normalized, ".")
	switch {
	case dots > 1 && commas == 0:
		normalized = strings.ReplaceAll(normalized, ".", "")
	case commas > 1 && dots == 0:
		normalized = strings.ReplaceAll(normalized, ",", "")
	}
	if strings.Contains(normalized, ".") && strings.Contains(normalized, ",") {
		if strings.LastIndex(normalized, ",") > strings.LastIndex(normalized, ".") {
			normalized = strings.ReplaceAll(normalized, ".", "")
			normalized = strings.ReplaceAll(normalized, ",", ".")
		} else {
			normalized = strings.ReplaceAll(normalized, ",", "")
		}
	} else if strings.Contains(normalized, ",") {
		normalized = strings.ReplaceAll(normalized, ",", ".")
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ToCents converts a decimal major-unit amount to minor units, rounding
// half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// ContainsCurrencyAmount reports whether text carries a currency symbol or a
// decimal amount token. Used to keep descriptor lines apart from priced lines.
func ContainsCurrencyAmount(text string) bool {
	return currencyToken.MatchString(text)
}
