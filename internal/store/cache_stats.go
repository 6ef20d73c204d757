package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveCacheStats records a cache counter snapshot.
func (s *SQLiteStore) SaveCacheStats(ctx context.Context, cs *CacheStats) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_stats (hits, misses, puts, evictions, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cs.Hits, cs.Misses, cs.Puts, cs.Evictions, cs.Size, now,
	)
	if err != nil {
		return fmt.Errorf("saving cache stats: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting cache stats id: %w", err)
	}
	cs.ID = id
	cs.CreatedAt = now
	return nil
}

// LatestCacheStats returns the newest snapshot, or nil if none was saved.
func (s *SQLiteStore) LatestCacheStats(ctx context.Context) (*CacheStats, error) {
	cs := &CacheStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, hits, misses, puts, evictions, size, created_at
		 FROM cache_stats ORDER BY id DESC LIMIT 1`,
	).Scan(&cs.ID, &cs.Hits, &cs.Misses, &cs.Puts, &cs.Evictions, &cs.Size, &cs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache stats: %w", err)
	}
	return cs, nil
}
