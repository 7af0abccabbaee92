package async

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/invoice-pipeline/internal/store"
	"log/slog"
)

type memStore struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage
}

func (m *memStore) Lookup(_ context.Context, hash string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.docs[hash]
	return p, ok, nil
}

func (m *memStore) Save(_ context.Context, hash, _ string, _ string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[hash] = payload
	return nil
}

func (m *memStore) List(context.Context) ([]store.Record, error) { return nil, nil }
func (m *memStore) Close() error                                 { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type staticCompleter struct{ response string }

func (s *staticCompleter) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return s.response, nil
}

const queueResponse = `{
  "schema_version": "invoice_v1",
  "invoice": {
    "invoice_date": "2025-03-14",
    "vendor_name": "Acme Corp",
    "currency_code": "USD",
    "subtotal_cents": 95827,
    "tax_cents": 9583,
    "total_cents": 105410
  },
  "items": [{"idx": 1, "description": "Widget", "line_total_cents": 95827}]
}`

func TestQueueProcessesJobs(t *testing.T) {
	st := &memStore{docs: make(map[string]json.RawMessage)}
	pipe := pipeline.New(common.PipelineConfig{MinTextLength: 5, MaxPages: 10},
		st, &staticCompleter{response: queueResponse}, pipeline.NewFileTextSource(), nil)

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("INVOICE "+name+"\nAcme Corp\nTotal 10.00"), 0o644))
		paths = append(paths, p)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	q := NewProcessorQueue(pipe, logger,
		WithWorkers(2),
		WithQueueSize(8),
		WithProcessTimeout(10*time.Second),
	)

	for _, p := range paths {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p, SubmittedAt: time.Now()}))
	}
	q.Shutdown(context.Background())

	assert.Equal(t, 2, st.count())
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	st := &memStore{docs: make(map[string]json.RawMessage)}
	pipe := pipeline.New(common.PipelineConfig{MinTextLength: 5},
		st, &staticCompleter{response: queueResponse}, pipeline.NewFileTextSource(), nil)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	q := NewProcessorQueue(pipe, logger, WithWorkers(1))
	q.Shutdown(context.Background())

	// must not panic on the closed channel, and must not process anything
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "ignored.txt"}))
	assert.Equal(t, 0, st.count())
}

func TestQueueShutdownIsIdempotent(t *testing.T) {
	st := &memStore{docs: make(map[string]json.RawMessage)}
	pipe := pipeline.New(common.PipelineConfig{MinTextLength: 5},
		st, &staticCompleter{response: queueResponse}, pipeline.NewFileTextSource(), nil)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	q := NewProcessorQueue(pipe, logger)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
}
