// Package observability records what the speech pipeline did: a SQLite
// journal with one row per conversion, and Prometheus collectors for
// stage latency and cache behaviour.
//
// Journal writes are buffered and flushed by a background goroutine; a
// full buffer flushes inline. Persistence failures are logged and never
// reach the conversion that produced the row.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one journaled conversion.
type Run struct {
	ID          string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	ContentHash string        `json:"content_hash"`
	Format      string        `json:"format"`
	DocType     string        `json:"doc_type"`
	Platform    string        `json:"platform"`
	Elements    int           `json:"elements"`
	Chunks      int           `json:"chunks"`
	CacheHit    bool          `json:"cache_hit"`
	Valid       bool          `json:"valid"`
	Duration    time.Duration `json:"duration_ns"`
	Error       string        `json:"error,omitempty"`
}

// NewRunID returns a time-sortable UUIDv7.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// JournalConfig tunes buffering.
type JournalConfig struct {
	BufferSize    int           // default 100
	FlushInterval time.Duration // default 5s
	Logger        *slog.Logger
}

func (c *JournalConfig) defaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Journal buffers Runs and flushes them to SQLite in batches.
type Journal struct {
	db     *sql.DB
	ownDB  bool
	cfg    JournalConfig
	logger *slog.Logger

	mu     sync.Mutex
	buffer []Run

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// OpenJournal opens (creating if needed) the SQLite database at path with
// WAL journaling, applies the schema and starts a Journal that owns the
// database. ":memory:" is accepted for tests.
func OpenJournal(path string, cfg JournalConfig) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("observability: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("observability: open %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("observability: %s: %w", pragma, err)
		}
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, err
	}
	j := NewJournal(db, cfg)
	j.ownDB = true
	return j, nil
}

// NewJournal starts a Journal on an initialised database. The caller keeps
// ownership of db.
func NewJournal(db *sql.DB, cfg JournalConfig) *Journal {
	cfg.defaults()
	j := &Journal{
		db:     db,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "journal"),
		buffer: make([]Run, 0, cfg.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go j.flushLoop()
	return j
}

// Record queues r. Missing IDs and start times are filled in.
func (j *Journal) Record(r Run) {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buffer = append(j.buffer, r)
	if len(j.buffer) >= j.cfg.BufferSize {
		j.flushLocked()
	}
}

// Flush writes buffered runs now.
func (j *Journal) Flush() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flushLocked()
}

// Recent returns the latest runs, newest first. limit <= 0 means 20.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `SELECT run_id, started_at, content_hash, format, doc_type, platform,
		elements, chunks, cache_hit, valid, duration_ms, error
		FROM conversion_runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("observability: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var startedMs int64
		var durationMs float64
		if err := rows.Scan(&r.ID, &startedMs, &r.ContentHash, &r.Format, &r.DocType, &r.Platform,
			&r.Elements, &r.Chunks, &r.CacheHit, &r.Valid, &durationMs, &r.Error); err != nil {
			return nil, fmt.Errorf("observability: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Duration = time.Duration(durationMs * float64(time.Millisecond))
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cleanup deletes runs older than retention and returns the count removed.
func (j *Journal) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	res, err := j.db.ExecContext(ctx, "DELETE FROM conversion_runs WHERE started_at < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup runs: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes remaining runs, stops the background goroutine and closes
// the database if the Journal opened it.
func (j *Journal) Close() error {
	j.once.Do(func() { close(j.stop) })
	<-j.done
	if j.ownDB {
		return j.db.Close()
	}
	return nil
}

func (j *Journal) flushLoop() {
	defer close(j.done)
	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			j.Flush()
			return
		case <-ticker.C:
			j.Flush()
		}
	}
}

func (j *Journal) flushLocked() {
	if len(j.buffer) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		j.logger.Error("journal: begin tx", "error", err)
		return
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO conversion_runs
		(run_id, started_at, content_hash, format, doc_type, platform, elements, chunks, cache_hit, valid, duration_ms, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		j.logger.Error("journal: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, r := range j.buffer {
		if _, err := stmt.ExecContext(ctx, r.ID, r.StartedAt.UnixMilli(), r.ContentHash, r.Format, r.DocType,
			r.Platform, r.Elements, r.Chunks, r.CacheHit, r.Valid,
			float64(r.Duration)/float64(time.Millisecond), r.Error); err != nil {
			j.logger.Error("journal: insert", "error", err, "run_id", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		j.logger.Error("journal: commit", "error", err)
		return
	}
	j.buffer = j.buffer[:0]
}
