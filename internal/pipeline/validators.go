package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateRequiredFields enforces the hard contract a persisted payload must
// meet: a vendor name, a well-formed ISO date and at least one line item.
// Failures are terminal for the run and never retried.
func ValidateRequiredFields(doc *invoice.Document) error {
	if strings.TrimSpace(doc.Invoice.VendorName) == "" {
		return common.NewAppError("MISSING_VENDOR", "vendor_name is required", common.ErrValidation)
	}
	if err := ValidateISODate(doc.Invoice.InvoiceDate); err != nil {
		return err
	}
	if len(doc.Items) == 0 {
		return common.NewAppError("NO_ITEMS", "at least one line item is required", common.ErrValidation)
	}
	return nil
}

// ValidateISODate checks for a real calendar date in YYYY-MM-DD form.
func ValidateISODate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return common.NewAppError("BAD_DATE",
			"invoice_date must be a valid YYYY-MM-DD date, got "+quoteOrEmpty(date), common.ErrValidation)
	}
	return nil
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "'" + s + "'"
}

// ResolveCurrency keeps a plausible ISO 4217 code and falls back to USD for
// everything else, including the parser's UNK marker.
func ResolveCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == "UNK" || !currencyCodePattern.MatchString(code) {
		return "USD"
	}
	return code
}

// EnsureText verifies that extraction produced enough text to be worth a
// completion call. The empty-document failure is distinct from validation
// failures so callers can report "nothing to read" separately.
func EnsureText(pages []PageText, minLength int) (string, error) {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Content)
	}
	text := strings.TrimSpace(b.String())
	if len(text) < minLength {
		return "", common.NewAppError("EMPTY_DOCUMENT",
			"document produced no usable text", common.ErrNoText)
	}
	return text, nil
}
