package observability

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	_ "modernc.org/sqlite"
)

func setupJournalDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInit_CreatesTable(t *testing.T) {
	db := setupJournalDB(t)
	var count int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='conversion_runs'").Scan(&count)
	if count != 1 {
		t.Fatal("conversion_runs not created")
	}
	// Idempotent.
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
}

func TestJournal_RecordAndRecent(t *testing.T) {
	db := setupJournalDB(t)
	j := NewJournal(db, JournalConfig{BufferSize: 100, FlushInterval: time.Hour})
	defer j.Close()

	base := time.Now().Add(-time.Minute)
	j.Record(Run{StartedAt: base, ContentHash: "aaa", Format: "markdown", DocType: "technical",
		Platform: "azure", Elements: 4, Chunks: 1, Valid: true, Duration: 12 * time.Millisecond})
	j.Record(Run{StartedAt: base.Add(time.Second), ContentHash: "bbb", Format: "html", DocType: "narrative",
		Platform: "google", Elements: 9, Chunks: 2, CacheHit: true})
	j.Flush()

	runs, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ContentHash != "bbb" || !runs[0].CacheHit || runs[0].Valid || runs[0].Chunks != 2 {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].Duration != 12*time.Millisecond || !runs[1].Valid || runs[1].DocType != "technical" {
		t.Errorf("oldest run = %+v", runs[1])
	}
	if _, err := uuid.Parse(runs[0].ID); err != nil {
		t.Errorf("run id %q: %v", runs[0].ID, err)
	}
}

func TestJournal_FlushesWhenBufferFull(t *testing.T) {
	db := setupJournalDB(t)
	j := NewJournal(db, JournalConfig{BufferSize: 2, FlushInterval: time.Hour})
	defer j.Close()

	j.Record(Run{ContentHash: "a", Format: "auto", Platform: "generic"})
	j.Record(Run{ContentHash: "b", Format: "auto", Platform: "generic"})

	var count int
	db.QueryRow("SELECT COUNT(*) FROM conversion_runs").Scan(&count)
	if count != 2 {
		t.Fatalf("rows = %d, want 2 after buffer filled", count)
	}
}

func TestJournal_CloseFlushes(t *testing.T) {
	db := setupJournalDB(t)
	j := NewJournal(db, JournalConfig{FlushInterval: time.Hour})
	j.Record(Run{ContentHash: "a", Format: "auto", Platform: "generic"})
	j.Close()
	j.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM conversion_runs").Scan(&count)
	if count != 1 {
		t.Fatalf("rows = %d, want 1 after close", count)
	}
}

func TestJournal_Cleanup(t *testing.T) {
	db := setupJournalDB(t)
	j := NewJournal(db, JournalConfig{FlushInterval: time.Hour})
	defer j.Close()

	j.Record(Run{StartedAt: time.Now().Add(-48 * time.Hour), ContentHash: "old", Format: "auto", Platform: "generic"})
	j.Record(Run{ContentHash: "new", Format: "auto", Platform: "generic"})
	j.Flush()

	n, err := j.Cleanup(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
}

func TestOpenJournal_File(t *testing.T) {
	path := t.TempDir() + "/sub/journal.db"
	j, err := OpenJournal(path, JournalConfig{})
	if err != nil {
		t.Fatal(err)
	}
	j.Record(Run{ContentHash: "x", Format: "json", Platform: "amazon"})
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j2, err := OpenJournal(path, JournalConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer j2.Close()
	runs, err := j2.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Platform != "amazon" {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestNewRunID_IsV7(t *testing.T) {
	id, err := uuid.Parse(NewRunID())
	if err != nil {
		t.Fatal(err)
	}
	if id.Version() != 7 {
		t.Fatalf("version = %d", id.Version())
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.CacheEviction("size")
	m.Conversion("azure", "technical", false, 3)
	m.ObserveStage("parse", 2*time.Millisecond)

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v", got)
	}
	if got := testutil.ToFloat64(m.validationFails.WithLabelValues("azure")); got != 1 {
		t.Errorf("validation failures = %v", got)
	}
	if got := testutil.ToFloat64(m.conversions.WithLabelValues("azure", "technical", "false")); got != 1 {
		t.Errorf("conversions = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"speakdown_cache_lookups_total", "speakdown_stage_duration_seconds", "speakdown_cache_evictions_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}
