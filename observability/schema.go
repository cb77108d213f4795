package observability

import (
	"database/sql"
	"fmt"
)

// Schema is the DDL of the conversion journal.
const Schema = `
CREATE TABLE IF NOT EXISTS conversion_runs (
    run_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    content_hash TEXT NOT NULL,
    format TEXT NOT NULL,
    doc_type TEXT NOT NULL DEFAULT '',
    platform TEXT NOT NULL,
    elements INTEGER NOT NULL DEFAULT 0,
    chunks INTEGER NOT NULL DEFAULT 1,
    cache_hit INTEGER NOT NULL DEFAULT 0,
    valid INTEGER NOT NULL DEFAULT 0,
    duration_ms REAL NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON conversion_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_hash ON conversion_runs(content_hash);
`

// Init applies Schema to db.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("observability: init schema: %w", err)
	}
	return nil
}
