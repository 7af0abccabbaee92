package constants

// SummaryKeywords are descriptor tokens that mark a line item as an echoed
// summary row (discount, shipping, tax and friends) rather than a real item.
// Shared by item reconciliation and the summary extraction engine.
var SummaryKeywords = []string{
	"discount",
	"shipping",
	"freight",
	"delivery",
	"handling",
	"fees",
	"tax",
	"vat",
	"gst",
	"iva",
	"duty",
	"balance",
	"subtotal",
}

// SchemaVersion is the payload version tag emitted by the pipeline.
const SchemaVersion = "invoice_v1"
