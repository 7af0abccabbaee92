package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	content_hash TEXT PRIMARY KEY,
	source_path  TEXT NOT NULL DEFAULT '',
	raw_text     TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.NewAppError("STORE_OPEN", "failed to open database", err)
	}
	// The driver serializes access anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, common.NewAppError("STORE_MIGRATE", "failed to initialize schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, contentHash string) (json.RawMessage, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE content_hash = ?`, contentHash).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, common.NewAppError("STORE_LOOKUP", "failed to query document", err)
	}
	return json.RawMessage(payload), true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, contentHash, sourcePath string, rawText string, payload json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (content_hash, source_path, raw_text, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		contentHash, sourcePath, rawText, string(payload), time.Now().UTC())
	if err != nil {
		return common.NewAppError("STORE_SAVE", "failed to persist document", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_hash, source_path, payload, created_at FROM documents ORDER BY created_at`)
	if err != nil {
		return nil, common.NewAppError("STORE_LIST", "failed to list documents", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(&rec.ContentHash, &rec.SourcePath, &payload, &rec.CreatedAt); err != nil {
			return nil, common.NewAppError("STORE_LIST", "failed to scan document row", err)
		}
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("STORE_LIST", "failed to iterate documents", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
