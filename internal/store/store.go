// Package store persists extraction results keyed by content hash. The hash
// is the identity of a document's text, so a record is written at most once
// and later submissions of the same bytes are served from storage.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one persisted extraction.
type Record struct {
	ContentHash string
	SourcePath  string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// Store is the persistence contract used by the pipeline.
type Store interface {
	// Lookup returns the stored payload for a content hash, reporting whether
	// a record exists.
	Lookup(ctx context.Context, contentHash string) (json.RawMessage, bool, error)

	// Save persists a result under its content hash. Saving an existing hash
	// is a no-op: the first write wins.
	Save(ctx context.Context, contentHash, sourcePath string, rawText string, payload json.RawMessage) error

	// List returns all stored records ordered by creation time.
	List(ctx context.Context) ([]Record, error)

	Close() error
}
