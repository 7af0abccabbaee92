// Package pipeline orchestrates one document's path from raw text to a
// persisted invoice_v1 payload: cache gate, completion call, strict parse,
// normalization chain and validation.
package pipeline

import (
	"context"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// PageText is the OCR output of a single page.
type PageText struct {
	Number  int
	Content string
}

// TextSource extracts per-page text from a document on disk. Implementations
// wrap whatever OCR or text-layer tooling is deployed alongside the service.
type TextSource interface {
	ExtractPages(ctx context.Context, path string) ([]PageText, error)
}

// Classifier optionally overrides line-item categories after parsing. A nil
// classifier leaves the model's categories in place (canonicalized against
// the closed set).
type Classifier interface {
	Classify(ctx context.Context, description string) (constants.Category, bool)
}
