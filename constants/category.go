package constants

import (
	"strings"
)

// Category is the closed set of line-item categories in the invoice_v1 schema.
type Category string

const (
	Food           Category = "Food"
	Technology     Category = "Technology"
	Office         Category = "Office"
	Transportation Category = "Transportation"
	Services       Category = "Services"
	Taxes          Category = "Taxes"
	Health         Category = "Health"
	Home           Category = "Home"
	Other          Category = "Other"
)

var allCategories = []Category{
	Food,
	Technology,
	Office,
	Transportation,
	Services,
	Taxes,
	Health,
	Home,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps free-form labels onto the closed set. Unknown labels fall
// back to Other with ok=false so callers can flag them for review.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"groceries":   Food,
		"restaurant":  Food,
		"meals":       Food,
		"electronics": Technology,
		"software":    Technology,
		"hardware":    Technology,
		"stationery":  Office,
		"supplies":    Office,
		"shipping":    Transportation,
		"freight":     Transportation,
		"travel":      Transportation,
		"consulting":  Services,
		"tax":         Taxes,
		"vat":         Taxes,
		"medical":     Health,
		"pharmacy":    Health,
		"furniture":   Home,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
