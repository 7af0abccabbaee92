package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/normalize"
	"github.com/joseph-ayodele/invoice-pipeline/internal/store"
	"github.com/joseph-ayodele/invoice-pipeline/internal/textparse"
)

// Pipeline processes one document at a time: content hash, cache lookup,
// completion, normalization, validation and write-once persistence.
type Pipeline struct {
	cfg        common.PipelineConfig
	store      store.Store
	completer  llm.Completer
	source     TextSource
	classifier Classifier // optional
	logger     *slog.Logger
}

func New(cfg common.PipelineConfig, st store.Store, completer llm.Completer, source TextSource, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		completer: completer,
		source:    source,
		logger:    logger,
	}
}

// WithClassifier installs an optional category override hook.
func (p *Pipeline) WithClassifier(c Classifier) *Pipeline {
	p.classifier = c
	return p
}

// Run processes the document at path and returns the persisted invoice_v1
// payload. Identical content is served from storage without a completion
// call.
func (p *Pipeline) Run(ctx context.Context, path string) (json.RawMessage, error) {
	start := time.Now()

	hash, err := ContentHash(path)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("content_hash", hash[:12], "path", path)

	if payload, ok, err := p.store.Lookup(ctx, hash); err != nil {
		return nil, err
	} else if ok {
		logger.Info("pipeline.cache.hit", "elapsed_ms", time.Since(start).Milliseconds())
		return payload, nil
	}

	pages, err := p.source.ExtractPages(ctx, path)
	if err != nil {
		return nil, common.WrapError(err, "text extraction")
	}
	if p.cfg.MaxPages > 0 && len(pages) > p.cfg.MaxPages {
		pages = pages[:p.cfg.MaxPages]
	}
	text, err := EnsureText(pages, p.cfg.MinTextLength)
	if err != nil {
		return nil, err
	}

	doc, err := p.extract(ctx, text, len(pages))
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, common.NewAppError("PAYLOAD_ENCODE", "failed to encode payload", err)
	}
	if err := p.store.Save(ctx, hash, path, text, payload); err != nil {
		return nil, err
	}

	logger.Info("pipeline.document.processed",
		"pages", len(pages), "items", len(doc.Items),
		"elapsed_ms", time.Since(start).Milliseconds())
	return payload, nil
}

// RunText processes already-extracted text, keyed by the hash of the text
// itself. Used by callers that do their own extraction.
func (p *Pipeline) RunText(ctx context.Context, sourceName, text string) (json.RawMessage, error) {
	hash := HashText(text)
	if payload, ok, err := p.store.Lookup(ctx, hash); err != nil {
		return nil, err
	} else if ok {
		p.logger.Info("pipeline.cache.hit", "content_hash", hash[:12], "path", sourceName)
		return payload, nil
	}

	text = strings.TrimSpace(text)
	if len(text) < p.cfg.MinTextLength {
		return nil, common.NewAppError("EMPTY_DOCUMENT",
			"document produced no usable text", common.ErrNoText)
	}

	doc, err := p.extract(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, common.NewAppError("PAYLOAD_ENCODE", "failed to encode payload", err)
	}
	if err := p.store.Save(ctx, hash, sourceName, text, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// extract runs the completion call and the full normalization chain over raw
// document text.
func (p *Pipeline) extract(ctx context.Context, text string, pageCount int) (*invoice.Document, error) {
	compacted := textparse.CompactText(text)
	budget := llm.DynamicCompletionBudget(pageCount)

	raw, err := p.completer.Complete(ctx, llm.CompletionRequest{
		Messages:  llm.BuildMessages(compacted),
		MaxTokens: budget,
		Tag:       "invoice.extract",
	})
	if err != nil {
		return nil, err
	}

	doc, err := invoice.ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	doc.Invoice.CurrencyCode = ResolveCurrency(doc.Invoice.CurrencyCode)

	// A discount the document never mentions is a hallucinated one.
	lowerText := strings.ToLower(compacted)
	if invoice.CentsOr(doc.Invoice.DiscountCents, 0) > 0 &&
		!strings.Contains(lowerText, "discount") && !strings.Contains(lowerText, "rebate") {
		doc.Invoice.DiscountCents = invoice.Cents(0)
	}

	doc.Invoice = normalize.ResolveAmounts(doc.Invoice)

	p.applyItemDefaults(ctx, doc)
	doc.Items = normalize.ReconcileItems(doc.Items, doc.Invoice)

	discountLocked := false
	if p.cfg.ApplySummaryOverrides {
		discountLocked = p.applySummaryOverrides(doc, compacted)
	}

	itemsSum := normalize.ItemsSum(doc.Items)
	doc.Invoice = normalize.HarmonizeScale(doc.Invoice, itemsSum)
	doc.Invoice = normalize.ResolveAmounts(doc.Invoice)
	doc.Invoice = normalize.RecomputeDiscount(doc.Invoice, discountLocked)

	p.applyConsistencyWarning(doc, itemsSum)
	if doc.Notes != nil {
		doc.Notes.Warnings = normalize.FilterFalsePositiveWarnings(doc.Notes.Warnings, doc.Invoice)
	}

	if err := ValidateRequiredFields(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// applyItemDefaults fills per-item defaults and canonicalizes categories,
// consulting the classifier hook when one is installed.
func (p *Pipeline) applyItemDefaults(ctx context.Context, doc *invoice.Document) {
	for i := range doc.Items {
		item := &doc.Items[i]
		if item.Qty == nil {
			qty := 1.0
			item.Qty = &qty
		}
		cat, _ := constants.Canonicalize(item.Category)
		item.Category = string(cat)
		if p.classifier != nil {
			if cat, ok := p.classifier.Classify(ctx, item.Description); ok {
				item.Category = string(cat)
			}
		}
	}
}

// applySummaryOverrides corroborates header amounts against the summary
// section recovered from raw text, replacing fields only when the recovered
// set passes its own sanity check (total covers subtotal, additions below
// subtotal). Returns whether a discount override locked the field.
func (p *Pipeline) applySummaryOverrides(doc *invoice.Document, text string) bool {
	summary := textparse.ExtractSummary(text)
	if len(summary) == 0 {
		return false
	}

	sub, hasSub := summary[textparse.BucketSubtotal]
	tot, hasTot := summary[textparse.BucketTotal]
	add, hasAdd := summary[textparse.BucketAddition]
	if hasSub && hasTot && tot < sub {
		return false
	}
	if hasSub && hasAdd && add >= sub {
		return false
	}

	if hasSub {
		doc.Invoice.SubtotalCents = invoice.Cents(sub)
	}
	if hasTot {
		doc.Invoice.TotalCents = invoice.Cents(tot)
	}
	if hasAdd {
		doc.Invoice.TaxCents = invoice.Cents(add)
	}
	if d, ok := summary[textparse.BucketDiscount]; ok {
		doc.Invoice.DiscountCents = invoice.Cents(d)
		return true
	}
	return false
}

// applyConsistencyWarning appends a warning when the item sum disagrees with
// the closest header figure by more than max(1 cent, 1%).
func (p *Pipeline) applyConsistencyWarning(doc *invoice.Document, itemsSum int64) {
	if len(doc.Items) == 0 {
		return
	}
	expected := normalize.ExpectedItemsTotal(doc.Invoice, itemsSum)
	tolerance := expected / 100
	if tolerance < 1 {
		tolerance = 1
	}
	diff := itemsSum - expected
	if diff < 0 {
		diff = -diff
	}
	if diff <= tolerance {
		return
	}
	if doc.Notes == nil {
		doc.Notes = &invoice.Notes{}
	}
	doc.Notes.Warnings = append(doc.Notes.Warnings,
		"line item sum does not match invoice totals")
}
