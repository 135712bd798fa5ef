package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteKeywordIndex implements KeywordIndex using SQLite FTS5.
// Content is stored pre-tokenized (Han bigrams, lowercased words) so the
// stock unicode61 tokenizer only has to split on spaces.
type SQLiteKeywordIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	closed    bool
	stopWords map[string]struct{}
}

var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

// NewSQLiteKeywordIndex opens or creates an FTS5 keyword index.
// If path is empty, creates an in-memory index.
func NewSQLiteKeywordIndex(path string, config KeywordConfig) (*SQLiteKeywordIndex, error) {
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

	idx := &SQLiteKeywordIndex{
		db:        db,
		stopWords: BuildStopWordMap(config.StopWords),
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

// openSQLite opens a modernc SQLite database with a single connection and WAL.
func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: an in-memory database is private to its connection,
	// and a single writer avoids lock contention on disk.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

func (s *SQLiteKeywordIndex) initSchema() error {
	_, err := s.db.Exec(`
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);`)
	return err
}

// Index adds documents, replacing any existing entry with the same id.
func (s *SQLiteKeywordIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first.
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_content WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_content(doc_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer insertStmt.Close()

	for _, doc := range docs {
		content := strings.Join(Terms(doc.Text, s.stopWords), " ")
		if _, err := deleteStmt.ExecContext(ctx, int64(doc.ID)); err != nil {
			return fmt.Errorf("failed to delete existing document %d: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, int64(doc.ID), content); err != nil {
			return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Search matches any query term (OR) and orders by FTS5 bm25, then id.
func (s *SQLiteKeywordIndex) Search(ctx context.Context, queryStr string, limit int) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if limit <= 0 {
		return []*KeywordResult{}, nil
	}

	terms := uniqueTerms(Terms(queryStr, s.stopWords))
	if len(terms) == 0 {
		return []*KeywordResult{}, nil
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	match := strings.Join(quoted, " OR ")

	// bm25() is negative, lower is better.
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, bm25(fts_content) AS score
		FROM fts_content
		WHERE fts_content MATCH ?
		ORDER BY score, doc_id
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results := make([]*KeywordResult, 0, limit)
	for rows.Next() {
		var id int64
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, &KeywordResult{
			DocID:        uint64(id),
			Score:        -score,
			MatchedTerms: terms,
		})
	}
	return results, rows.Err()
}

// Count returns the number of indexed documents.
func (s *SQLiteKeywordIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fts_content`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteKeywordIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
