package llm

import (
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// schemaSnippet is a compact inline example of the invoice_v1 contract. It
// keeps the model grounded on the target shape without shipping the full
// JSON Schema in every prompt.
const schemaSnippet = `{"schema_version":"invoice_v1","invoice":{"invoice_number":"string|null",` +
	`"invoice_date":"YYYY-MM-DD","vendor_name":"string","vendor_tax_id":"string|null",` +
	`"buyer_name":"string|null","currency_code":"ISO4217|UNK","subtotal_cents":12345,` +
	`"tax_cents":2345,"total_cents":14690,"discount_cents":0},` +
	`"items":[{"idx":1,"description":"string","qty":1.0,"unit_price_cents":1234,` +
	`"line_total_cents":1234,"category":"Food|Technology|Office|Transportation|Services|Taxes|Health|Home|Other"}],` +
	`"notes":{"warnings":["string"],"confidence":0.0}}`

// BuildSystemPrompt sets the extractor role and the hard output rules:
// JSON only, integer cents, no hallucinated values, no arithmetic
// expressions.
func BuildSystemPrompt() string {
	return "You are an expert invoice extractor. Return ONLY valid JSON that exactly matches the " +
		"'invoice_v1' schema. Do not add any text outside the JSON. Do not hallucinate values: " +
		"if a field is missing, use null (or documented defaults). Convert all monetary amounts " +
		"to cents (INTEGER). Detect the currency from symbols or text; when unsure, use 'UNK'. " +
		"Categorize each line item using exactly one category from the provided list; if nothing fits, use 'Other'. " +
		"Ensure sum(items.line_total_cents) matches invoice.subtotal_cents when available " +
		"(or invoice.total_cents if subtotal is missing). Only warn when the relevant target differs " +
		"by more than ~1%, and never warn solely because total_cents includes tax on top of subtotal. " +
		"Capture discounts explicitly in invoice.discount_cents (0 when no discount) so that " +
		"total_cents = subtotal_cents + tax_cents - discount_cents. " +
		"Absolutely never emit arithmetic expressions (e.g., '322639 * 0.15'); every numeric field MUST be a literal integer."
}

// BuildUserPrompt packages the document text with the extraction guidelines.
// The number-format and column-mapping rules below target the European
// invoice layouts ("Net worth" / "VAT" / "Gross worth") the model most often
// misreads.
func BuildUserPrompt(pageText string) string {
	var b strings.Builder
	b.WriteString("Extract the structured invoice from the following document text.\n")
	b.WriteString("Do not output anything except the JSON payload.\n\n")
	b.WriteString("### Document text\n")
	b.WriteString(pageText)
	b.WriteString("\n\n### Valid categories\n")
	b.WriteString(strings.Join(constants.AsStringSlice(), ", "))
	b.WriteString(".\n\n### Schema (compact JSON)\n")
	b.WriteString(schemaSnippet)
	b.WriteString("\n\n### Guidelines\n")
	b.WriteString(
		"- Return one JSON object matching 'invoice_v1'.\n" +
			"- Amounts in cents (integers).\n" +
			"- **CRITICAL - Number format handling**:\n" +
			"  * European format uses COMMA as decimal separator: '49,99' = $49.99 = 4999 cents\n" +
			"  * SPACE or DOT are thousand separators (IGNORE THEM): '1 054,10' = $1,054.10 = 105410 cents\n" +
			"  * NEVER multiply by 100 after reading the comma; the last 2 digits after the comma are ALREADY cents.\n" +
			"  * NEVER include thousand separators in your output.\n" +
			"- **CRITICAL - Use correct totals**: for line items ALWAYS use 'Gross worth' (total INCLUDING tax/VAT), " +
			"NOT 'Net worth'. If both columns appear, use 'Gross worth' for line_total_cents.\n" +
			"- **CRITICAL - Summary section mapping**:\n" +
			"  * 'Net worth' in summary = invoice.subtotal_cents (amount BEFORE tax)\n" +
			"  * 'VAT' in summary = invoice.tax_cents\n" +
			"  * 'Gross worth' in summary = invoice.total_cents (amount AFTER tax)\n" +
			"  * Example: 'Net worth: $958.27, VAT: $95.83, Gross worth: $1,054.10' gives " +
			"subtotal_cents = 95827, tax_cents = 9583, total_cents = 105410.\n" +
			"- **CRITICAL - Shipping vs Tax**: shipping/handling fees go in tax_cents (it holds all additional " +
			"charges), so that total = subtotal + tax - discount.\n" +
			"- **CRITICAL - Item table column mapping**: with both 'Net price' and 'Gross worth' columns, " +
			"unit_price_cents = 'Net price' and line_total_cents = 'Gross worth'.\n" +
			"- Missing qty -> 1.0, missing unit_price -> null, line_total_cents is required.\n" +
			"- Dates in YYYY-MM-DD. Resolve ambiguous dates via month <= 12.\n" +
			"- Use exactly one allowed category per item (fallback 'Other').\n" +
			"- Always include invoice.discount_cents (0 if there is no discount).\n" +
			"- Some invoices list a descriptive line right below the item (category, SKU, etc.). " +
			"If that line does NOT have quantity/price/amounts, concatenate it to the previous item " +
			"instead of creating a new item.")
	return b.String()
}

// BuildMessages assembles the chat message sequence for one extraction.
func BuildMessages(pageText string) []Message {
	return []Message{
		{Role: "system", Content: BuildSystemPrompt()},
		{Role: "user", Content: BuildUserPrompt(pageText)},
	}
}

// DynamicCompletionBudget scales the completion token budget with document
// size, capped at 1024.
func DynamicCompletionBudget(pageCount int) int {
	if pageCount < 1 {
		pageCount = 1
	}
	budget := 256 + 120*pageCount
	if budget > 1024 {
		budget = 1024
	}
	return budget
}
