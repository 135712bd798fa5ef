package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SQLiteDocumentStore keeps document text, metadata and build state in SQLite.
type SQLiteDocumentStore struct {
	db *sql.DB
}

var _ DocumentStore = (*SQLiteDocumentStore)(nil)

// NewSQLiteDocumentStore opens or creates the document database at path.
// An empty path gives an in-memory store.
func NewSQLiteDocumentStore(path string) (*SQLiteDocumentStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id       INTEGER PRIMARY KEY,
		text     TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);
	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteDocumentStore{db: db}, nil
}

// Put inserts or replaces documents in one transaction.
func (s *SQLiteDocumentStore) Put(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO documents(id, text, metadata) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %d: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, int64(doc.ID), doc.Text, string(meta)); err != nil {
			return fmt.Errorf("failed to store document %d: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Get loads the requested documents. Unknown ids are absent from the map.
func (s *SQLiteDocumentStore) Get(ctx context.Context, ids []uint64) (map[uint64]*Document, error) {
	out := make(map[uint64]*Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata FROM documents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			text string
			meta string
		)
		if err := rows.Scan(&id, &text, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc := &Document{ID: uint64(id), Text: text, Metadata: map[string]string{}}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %d: %w", id, err)
		}
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

// Count returns the number of stored documents.
func (s *SQLiteDocumentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// SetState records a build state value.
func (s *SQLiteDocumentStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO state(key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// GetState returns a build state value, or "" if unset.
func (s *SQLiteDocumentStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteDocumentStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
