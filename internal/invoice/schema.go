package invoice

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaJSON is the structural contract for invoice_v1 payloads. It enforces
// shape and types only; the hard required-field rules (vendor, date, items)
// live in the pipeline validators so they surface as validation errors, not
// parse errors.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["schema_version", "invoice", "items"],
  "properties": {
    "schema_version": {"const": "invoice_v1"},
    "invoice": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "invoice_number": {"type": ["string", "null"]},
        "invoice_date": {"type": ["string", "null"]},
        "vendor_name": {"type": ["string", "null"]},
        "vendor_tax_id": {"type": ["string", "null"]},
        "buyer_name": {"type": ["string", "null"]},
        "currency_code": {"type": ["string", "null"]},
        "subtotal_cents": {"type": ["integer", "null"]},
        "tax_cents": {"type": ["integer", "null"]},
        "total_cents": {"type": ["integer", "null"]},
        "discount_cents": {"type": ["integer", "null"]}
      }
    },
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["description"],
        "properties": {
          "idx": {"type": ["integer", "null"]},
          "description": {"type": "string"},
          "qty": {"type": ["number", "null"]},
          "unit_price_cents": {"type": ["integer", "null"]},
          "line_total_cents": {"type": ["integer", "null"]},
          "category": {"type": ["string", "null"]}
        }
      }
    },
    "notes": {
      "type": ["object", "null"],
      "additionalProperties": false,
      "properties": {
        "warnings": {"type": ["array", "null"], "items": {"type": "string"}},
        "confidence": {"type": ["number", "null"]}
      }
    }
  }
}`

var documentSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("invoice_v1.json", strings.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("invoice_v1.json")
}
