// Package store persists docfill's analysis history, workflow events and
// cache statistics in a single SQLite database file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.docfill/docfill.db"

// DefaultListLimit caps list queries that do not set a limit.
const DefaultListLimit = 50

// AnalysisRecord is one persisted document analysis. Result holds the
// analysis as JSON; the store does not interpret it.
type AnalysisRecord struct {
	ID            int64
	SessionID     string
	SourcePath    string
	ContentHash   string
	Method        string
	Complexity    string
	VariableCount int
	ProcessingMS  int64
	Result        string
	Error         string
	CreatedAt     time.Time
}

// SessionEvent is an entry in the append-only workflow event log.
type SessionEvent struct {
	ID        int64
	SessionID string
	From      string
	To        string
	Message   string
	CreatedAt time.Time
}

// CacheStats is a snapshot of analysis cache counters.
type CacheStats struct {
	ID        int64
	Hits      int64
	Misses    int64
	Puts      int64
	Evictions int64
	Size      int
	CreatedAt time.Time
}

// ListOpts controls pagination and filtering for List operations.
type ListOpts struct {
	Limit  int
	Offset int
	Method string // filter by extraction method
}

// StoreStats holds observability statistics about the store.
type StoreStats struct {
	AnalysisCount   int64
	EventCount      int64
	CacheStatsCount int64
	DBSizeBytes     int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface.
type Store interface {
	// Analyses
	SaveAnalysis(ctx context.Context, r *AnalysisRecord) (int64, error)
	GetAnalysis(ctx context.Context, id int64) (*AnalysisRecord, error)
	ListAnalyses(ctx context.Context, opts ListOpts) ([]*AnalysisRecord, error)
	LatestByHash(ctx context.Context, hash string) (*AnalysisRecord, error)

	// Events
	LogEvent(ctx context.Context, e *SessionEvent) error
	SessionEvents(ctx context.Context, sessionID string) ([]*SessionEvent, error)

	// Cache statistics
	SaveCacheStats(ctx context.Context, cs *CacheStats) error
	LatestCacheStats(ctx context.Context) (*CacheStats, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database. Manual only.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns current database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM analyses", &stats.AnalysisCount},
		{"SELECT COUNT(*) FROM session_events", &stats.EventCount},
		{"SELECT COUNT(*) FROM cache_stats", &stats.CacheStatsCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}
	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
