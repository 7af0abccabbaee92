package invoice

import (
	"bytes"
	"encoding/json"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/textparse"
)

// ParseResponse deserializes raw model output into a typed invoice_v1
// document. Unknown or malformed shapes are rejected with ErrMalformedOutput
// rather than coerced.
func ParseResponse(raw string) (*Document, error) {
	sanitized := textparse.StripCodeFence(raw)
	if sanitized == "" {
		return nil, common.NewAppError("EMPTY_RESPONSE", "model returned no content", common.ErrMalformedOutput)
	}

	var generic any
	if err := json.Unmarshal([]byte(sanitized), &generic); err != nil {
		return nil, common.NewAppError("INVALID_JSON", "model output is not valid JSON", common.ErrMalformedOutput)
	}
	if err := documentSchema.Validate(generic); err != nil {
		return nil, common.NewAppError("SCHEMA_MISMATCH", err.Error(), common.ErrMalformedOutput)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(sanitized)))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, common.NewAppError("DECODE_FAILED", err.Error(), common.ErrMalformedOutput)
	}
	return &doc, nil
}
