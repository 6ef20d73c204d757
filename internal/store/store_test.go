package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Database Initialization ---

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	ss := s.(*SQLiteStore)

	for _, table := range []string{"analyses", "session_events", "cache_stats", "meta"} {
		var name string
		err := ss.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	v, err := ss.getMetaValue("schema_version")
	if err != nil || v != schemaVersion {
		t.Fatalf("schema_version = %q (%v), want %s", v, err, schemaVersion)
	}
}

func TestComplexityColumnExists(t *testing.T) {
	ss := newTestStore(t).(*SQLiteStore)

	var count int
	err := ss.db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('analyses') WHERE name='complexity'").Scan(&count)
	if err != nil {
		t.Fatalf("pragma_table_info: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected complexity column, got count=%d", count)
	}

	// Running the migration again is a no-op.
	if err := ss.migrateComplexityColumn(); err != nil {
		t.Fatalf("second migration: %v", err)
	}
}

func TestReopenFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "docfill.db")
	ctx := context.Background()

	s, err := NewStore(StoreConfig{DBPath: path})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := s.SaveAnalysis(ctx, &AnalysisRecord{ContentHash: "h1", Method: "sections"}); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	s.Close()

	s, err = NewStore(StoreConfig{DBPath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	list, err := s.ListAnalyses(ctx, ListOpts{})
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 analysis after reopen, got %d (%v)", len(list), err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.DBSizeBytes == 0 {
		t.Error("file store should report its size")
	}
}

// --- Analyses ---

func TestSaveAndGetAnalysis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &AnalysisRecord{
		SessionID:     "sess-1",
		SourcePath:    "/tmp/contrat.docx",
		ContentHash:   "abc",
		Method:        "direct_regex",
		Complexity:    "simple",
		VariableCount: 4,
		ProcessingMS:  12,
		Result:        `{"order":["nom"]}`,
	}
	id, err := s.SaveAnalysis(ctx, rec)
	if err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if id == 0 || rec.ID != id || rec.CreatedAt.IsZero() {
		t.Fatalf("record not updated: %+v", rec)
	}

	got, err := s.GetAnalysis(ctx, id)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got == nil {
		t.Fatal("analysis not found")
	}
	if got.SessionID != "sess-1" || got.Method != "direct_regex" || got.Complexity != "simple" ||
		got.VariableCount != 4 || got.Result != `{"order":["nom"]}` {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not scanned")
	}

	missing, err := s.GetAnalysis(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing id, got %+v (%v)", missing, err)
	}
}

func TestSaveAnalysisRequiresHash(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveAnalysis(context.Background(), &AnalysisRecord{Method: "default"}); err == nil {
		t.Fatal("expected error without content hash")
	}
}

func TestListAnalyses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	methods := []string{"direct_regex", "sections", "sections", "default", "sections"}
	for i, m := range methods {
		if _, err := s.SaveAnalysis(ctx, &AnalysisRecord{ContentHash: fmt.Sprintf("h%d", i), Method: m}); err != nil {
			t.Fatalf("SaveAnalysis %d: %v", i, err)
		}
	}

	all, err := s.ListAnalyses(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(all) != 5 || all[0].ContentHash != "h4" {
		t.Fatalf("expected newest first, got %d records starting with %q", len(all), all[0].ContentHash)
	}

	page, err := s.ListAnalyses(ctx, ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListAnalyses page: %v", err)
	}
	if len(page) != 2 || page[0].ContentHash != "h3" || page[1].ContentHash != "h2" {
		t.Errorf("unexpected page %v, %v", page[0].ContentHash, page[1].ContentHash)
	}

	sections, err := s.ListAnalyses(ctx, ListOpts{Method: "sections"})
	if err != nil {
		t.Fatalf("ListAnalyses method: %v", err)
	}
	if len(sections) != 3 {
		t.Errorf("expected 3 sections analyses, got %d", len(sections))
	}
}

func TestLatestByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveAnalysis(ctx, &AnalysisRecord{ContentHash: "same", Method: "patterns"})
	s.SaveAnalysis(ctx, &AnalysisRecord{ContentHash: "other", Method: "sections"})
	s.SaveAnalysis(ctx, &AnalysisRecord{ContentHash: "same", Method: "sections"})

	got, err := s.LatestByHash(ctx, "same")
	if err != nil {
		t.Fatalf("LatestByHash: %v", err)
	}
	if got == nil || got.Method != "sections" {
		t.Fatalf("expected latest same-hash analysis, got %+v", got)
	}
	none, err := s.LatestByHash(ctx, "absent")
	if err != nil || none != nil {
		t.Errorf("expected nil for unknown hash, got %+v (%v)", none, err)
	}
}

// --- Events ---

func TestSessionEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transitions := [][2]string{{"ready", "analyzing"}, {"analyzing", "analyzed"}, {"analyzed", "creating"}}
	for _, tr := range transitions {
		e := &SessionEvent{SessionID: "s1", From: tr[0], To: tr[1]}
		if err := s.LogEvent(ctx, e); err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
		if e.ID == 0 {
			t.Fatal("event id not set")
		}
	}
	s.LogEvent(ctx, &SessionEvent{SessionID: "s2", From: "ready", To: "analyzing"})

	events, err := s.SessionEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("SessionEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].To != "analyzing" || events[2].To != "creating" {
		t.Errorf("events out of order: %+v", events)
	}
}

// --- Cache stats ---

func TestCacheStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	none, err := s.LatestCacheStats(ctx)
	if err != nil || none != nil {
		t.Fatalf("expected no stats yet, got %+v (%v)", none, err)
	}

	s.SaveCacheStats(ctx, &CacheStats{Hits: 1, Misses: 9, Puts: 9, Size: 9})
	if err := s.SaveCacheStats(ctx, &CacheStats{Hits: 5, Misses: 15, Puts: 15, Evictions: 5, Size: 10}); err != nil {
		t.Fatalf("SaveCacheStats: %v", err)
	}

	latest, err := s.LatestCacheStats(ctx)
	if err != nil {
		t.Fatalf("LatestCacheStats: %v", err)
	}
	if latest.Hits != 5 || latest.Evictions != 5 || latest.Size != 10 {
		t.Errorf("unexpected latest stats %+v", latest)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CacheStatsCount != 2 {
		t.Errorf("expected 2 snapshots, got %d", stats.CacheStatsCount)
	}
}
