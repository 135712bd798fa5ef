package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/lawrag/internal/orchestrator"
	"github.com/Aman-CERP/lawrag/internal/quality"
)

// DefaultMaxRuns bounds the run log; the oldest rows are trimmed first.
const DefaultMaxRuns = 10000

// Store is a SQLite run log. It implements orchestrator.Recorder.
type Store struct {
	db      *sql.DB
	maxRuns int
	now     func() time.Time

	mu     sync.Mutex
	closed bool
}

var _ orchestrator.Recorder = (*Store)(nil)

// Open opens (or creates) the run log at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	// An in-memory database lives and dies with its only connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, maxRuns: DefaultMaxRuns, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		path TEXT NOT NULL,
		outcome TEXT NOT NULL,
		primary_kind TEXT NOT NULL,
		primary_total REAL NOT NULL,
		secondary_total REAL,
		evidence INTEGER NOT NULL,
		web_results INTEGER NOT NULL,
		latency_bucket TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS run_degradations (
		run_id TEXT NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (run_id, label)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// Record stores a finished run and trims the log to its maximum size.
func (s *Store) Record(ctx context.Context, r *orchestrator.Result) error {
	if r == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("telemetry store is closed")
	}

	var secondary sql.NullFloat64
	if r.SecondaryQuality != nil {
		secondary = sql.NullFloat64{Float64: r.SecondaryQuality.Total(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, query, path, outcome, primary_kind, primary_total,
			secondary_total, evidence, web_results, latency_bucket, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Query, r.Path(), r.Outcome(), string(r.PrimaryQuality.Kind), r.PrimaryQuality.Total(),
		secondary, len(r.Evidence), r.WebResults, string(LatencyToBucket(r.Duration)),
		int64(r.Duration), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, label := range r.Degradations {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO run_degradations (run_id, label) VALUES (?, ?)`,
			r.RunID, label); err != nil {
			return fmt.Errorf("insert degradation: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM runs
		WHERE run_id NOT IN (
			SELECT run_id FROM runs
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`, s.maxRuns); err != nil {
		return fmt.Errorf("trim runs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM run_degradations
		WHERE run_id NOT IN (SELECT run_id FROM runs)
	`); err != nil {
		return fmt.Errorf("trim degradations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return []Run{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, query, path, outcome, primary_kind, primary_total, secondary_total,
			evidence, web_results, duration_ns, created_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			run       Run
			secondary sql.NullFloat64
			duration  int64
			created   int64
		)
		if err := rows.Scan(&run.RunID, &run.Query, &run.Path, &run.Outcome, &run.PrimaryKind,
			&run.PrimaryTotal, &secondary, &run.Evidence, &run.WebResults, &duration, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if secondary.Valid {
			v := secondary.Float64
			run.SecondaryTotal = &v
		}
		run.Duration = time.Duration(duration)
		run.CreatedAt = time.UnixMilli(created)
		index[run.RunID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return runs, nil
	}

	degRows, err := s.db.QueryContext(ctx, `
		SELECT d.run_id, d.label
		FROM run_degradations d
		JOIN (SELECT run_id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?) r
			ON r.run_id = d.run_id
		ORDER BY d.label
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query degradations: %w", err)
	}
	defer degRows.Close()
	for degRows.Next() {
		var id, label string
		if err := degRows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("scan degradation: %w", err)
		}
		if i, ok := index[id]; ok {
			runs[i].Degradations = append(runs[i].Degradations, label)
		}
	}
	return runs, degRows.Err()
}

// Stats aggregates the runs recorded at or after since.
func (s *Store) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	st := &Stats{
		Since:        since,
		Latency:      make(map[LatencyBucket]int64),
		Degradations: make(map[string]int64),
	}
	from := since.UnixMilli()

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(path = 'fallback'), 0),
			COALESCE(SUM(outcome = 'insufficient'), 0),
			COALESCE(SUM(outcome = 'apology'), 0),
			COALESCE(SUM(primary_kind = ?), 0),
			AVG(primary_total)
		FROM runs
		WHERE created_at >= ?
	`, string(quality.KindMalformed), from).Scan(&st.TotalRuns, &st.FallbackRuns, &st.InsufficientRuns,
		&st.ApologyRuns, &st.MalformedJudgments, &avg)
	if err != nil {
		return nil, fmt.Errorf("query run totals: %w", err)
	}
	st.AvgPrimaryTotal = avg.Float64

	if err := s.countInto(ctx, `
		SELECT latency_bucket, COUNT(*) FROM runs
		WHERE created_at >= ? GROUP BY latency_bucket
	`, from, func(k string, n int64) { st.Latency[LatencyBucket(k)] = n }); err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	if err := s.countInto(ctx, `
		SELECT d.label, COUNT(*) FROM run_degradations d
		JOIN runs r ON r.run_id = d.run_id
		WHERE r.created_at >= ? GROUP BY d.label
	`, from, func(k string, n int64) { st.Degradations[k] = n }); err != nil {
		return nil, fmt.Errorf("query degradation counts: %w", err)
	}
	return st, nil
}

func (s *Store) countInto(ctx context.Context, query string, from int64, put func(string, int64)) error {
	rows, err := s.db.QueryContext(ctx, query, from)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		put(k, n)
	}
	return rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
