package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/store"
)

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]json.RawMessage)}
}

func (m *memStore) Lookup(_ context.Context, hash string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.docs[hash]
	return payload, ok, nil
}

func (m *memStore) Save(_ context.Context, hash, _ string, _ string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[hash]; !exists {
		m.docs[hash] = payload
	}
	return nil
}

func (m *memStore) List(context.Context) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for hash, payload := range m.docs {
		out = append(out, store.Record{ContentHash: hash, Payload: payload})
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

// fakeCompleter returns a fixed response and counts calls.
type fakeCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleText = `INVOICE No. 2041
Acme Corp
Date: 2025-03-14
Widget A    2 x 479.13    958.27

Net worth: 958.27   VAT: 95.83   Gross worth: 1,054.10
`

func sampleResponse(sub, tax, tot int64) string {
	doc := map[string]any{
		"schema_version": "invoice_v1",
		"invoice": map[string]any{
			"invoice_number": "INV-2041",
			"invoice_date":   "2025-03-14",
			"vendor_name":    "Acme Corp",
			"currency_code":  "USD",
			"subtotal_cents": sub,
			"tax_cents":      tax,
			"total_cents":    tot,
			"discount_cents": 0,
		},
		"items": []map[string]any{
			{"idx": 1, "description": "Widget A", "qty": 2.0, "unit_price_cents": 47913, "line_total_cents": 95827, "category": "Office"},
		},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func testConfig() common.PipelineConfig {
	return common.PipelineConfig{
		Workers:       1,
		MaxPages:      10,
		MinTextLength: 10,
	}
}

func TestRunProducesPayload(t *testing.T) {
	completer := &fakeCompleter{response: sampleResponse(95827, 9583, 105410)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	path := writeDoc(t, sampleText)

	payload, err := pipe.Run(context.Background(), path)
	require.NoError(t, err)

	var doc invoice.Document
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "Acme Corp", doc.Invoice.VendorName)
	assert.Equal(t, "USD", doc.Invoice.CurrencyCode)
	assert.Equal(t, int64(95827), *doc.Invoice.SubtotalCents)
	assert.Equal(t, int64(9583), *doc.Invoice.TaxCents)
	assert.Equal(t, int64(105410), *doc.Invoice.TotalCents)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, 1, doc.Items[0].Idx)
}

func TestRunCacheHitSkipsCompletion(t *testing.T) {
	completer := &fakeCompleter{response: sampleResponse(95827, 9583, 105410)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	path := writeDoc(t, sampleText)

	first, err := pipe.Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, completer.callCount())

	second, err := pipe.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, completer.callCount(), "second run must be served from storage")
	assert.JSONEq(t, string(first), string(second))
}

func TestRunRepairsSwappedAmounts(t *testing.T) {
	// Gross worth in the subtotal field, net worth in tax.
	completer := &fakeCompleter{response: sampleResponse(105410, 95827, 105410)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	path := writeDoc(t, sampleText)

	payload, err := pipe.Run(context.Background(), path)
	require.NoError(t, err)

	var doc invoice.Document
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, int64(95827), *doc.Invoice.SubtotalCents)
	assert.Equal(t, int64(9583), *doc.Invoice.TaxCents)
	assert.Equal(t, int64(105410), *doc.Invoice.TotalCents)
}

func TestRunEmptyDocumentFails(t *testing.T) {
	completer := &fakeCompleter{response: sampleResponse(95827, 9583, 105410)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	path := writeDoc(t, "  \n ")

	_, err := pipe.Run(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoText)
	assert.Equal(t, 0, completer.callCount())
}

func TestRunCompleterErrorPropagates(t *testing.T) {
	completer := &fakeCompleter{err: common.NewAppError("UPSTREAM_ERROR", "boom", common.ErrTransient)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	path := writeDoc(t, sampleText)

	_, err := pipe.Run(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransient)
}

func TestRunMissingVendorFailsValidation(t *testing.T) {
	doc := map[string]any{
		"schema_version": "invoice_v1",
		"invoice":        map[string]any{"invoice_date": "2025-03-14", "vendor_name": ""},
		"items":          []map[string]any{{"description": "Widget", "line_total_cents": 100}},
	}
	b, _ := json.Marshal(doc)
	completer := &fakeCompleter{response: string(b)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	path := writeDoc(t, sampleText)

	_, err := pipe.Run(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRunZeroesHallucinatedDiscount(t *testing.T) {
	doc := map[string]any{
		"schema_version": "invoice_v1",
		"invoice": map[string]any{
			"invoice_date":   "2025-03-14",
			"vendor_name":    "Acme Corp",
			"currency_code":  "USD",
			"subtotal_cents": 95827,
			"tax_cents":      9583,
			"total_cents":    105410,
			"discount_cents": 2500,
		},
		"items": []map[string]any{
			{"description": "Widget A", "qty": 1.0, "line_total_cents": 95827, "category": "Office"},
		},
	}
	b, _ := json.Marshal(doc)
	completer := &fakeCompleter{response: string(b)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	// sampleText never mentions a discount
	path := writeDoc(t, sampleText)

	payload, err := pipe.Run(context.Background(), path)
	require.NoError(t, err)

	var out invoice.Document
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, int64(0), *out.Invoice.DiscountCents)
}

func TestRunText(t *testing.T) {
	completer := &fakeCompleter{response: sampleResponse(95827, 9583, 105410)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)

	first, err := pipe.RunText(context.Background(), "upload-1", sampleText)
	require.NoError(t, err)

	_, err = pipe.RunText(context.Background(), "upload-2", sampleText)
	require.NoError(t, err)
	assert.Equal(t, 1, completer.callCount(), "identical text must hit the cache")

	var doc invoice.Document
	require.NoError(t, json.Unmarshal(first, &doc))
	assert.Equal(t, "Acme Corp", doc.Invoice.VendorName)
}

func TestRunTextTooShort(t *testing.T) {
	completer := &fakeCompleter{response: sampleResponse(95827, 9583, 105410)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)

	_, err := pipe.RunText(context.Background(), "upload-1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoText)
}

func TestRunCurrencyFallsBackToUSD(t *testing.T) {
	doc := map[string]any{
		"schema_version": "invoice_v1",
		"invoice": map[string]any{
			"invoice_date":   "2025-03-14",
			"vendor_name":    "Acme Corp",
			"currency_code":  "UNK",
			"subtotal_cents": 95827,
			"tax_cents":      9583,
			"total_cents":    105410,
		},
		"items": []map[string]any{
			{"description": "Widget A", "line_total_cents": 95827},
		},
	}
	b, _ := json.Marshal(doc)
	completer := &fakeCompleter{response: string(b)}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)
	path := writeDoc(t, sampleText)

	payload, err := pipe.Run(context.Background(), path)
	require.NoError(t, err)

	var out invoice.Document
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, "USD", out.Invoice.CurrencyCode)
}

func TestRunUnreadableFileFails(t *testing.T) {
	completer := &fakeCompleter{}
	pipe := New(testConfig(), newMemStore(), completer, NewFileTextSource(), nil)

	_, err := pipe.Run(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	var appErr *common.AppError
	assert.True(t, errors.As(err, &appErr))
}
