package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLookupMissing(t *testing.T) {
	st := newTestStore(t)

	payload, ok, err := st.Lookup(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, payload)
}

func TestSaveAndLookup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"schema_version":"invoice_v1"}`)
	require.NoError(t, st.Save(ctx, "abc123", "/docs/inv.txt", "raw text", payload))

	got, ok, err := st.Lookup(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(payload), string(got))
}

func TestSaveIsWriteOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := json.RawMessage(`{"version":1}`)
	second := json.RawMessage(`{"version":2}`)

	require.NoError(t, st.Save(ctx, "abc123", "a.txt", "text", first))
	require.NoError(t, st.Save(ctx, "abc123", "b.txt", "text", second))

	got, ok, err := st.Lookup(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":1}`, string(got))
}

func TestList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "h1", "a.txt", "", json.RawMessage(`{"n":1}`)))
	require.NoError(t, st.Save(ctx, "h2", "b.txt", "", json.RawMessage(`{"n":2}`)))

	recs, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	byHash := map[string]Record{}
	for _, r := range recs {
		byHash[r.ContentHash] = r
	}
	require.Contains(t, byHash, "h1")
	require.Contains(t, byHash, "h2")
	assert.Equal(t, "a.txt", byHash["h1"].SourcePath)
	assert.JSONEq(t, `{"n":2}`, string(byHash["h2"].Payload))
}

func TestListEmpty(t *testing.T) {
	st := newTestStore(t)

	recs, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}
