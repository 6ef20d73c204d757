package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const analysisColumns = `id, session_id, source_path, content_hash, method, complexity,
	variable_count, processing_ms, result, error, created_at`

// SaveAnalysis appends an analysis to the history and sets r.ID.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, r *AnalysisRecord) (int64, error) {
	if r.ContentHash == "" {
		return 0, fmt.Errorf("saving analysis: content hash is required")
	}
	if r.Result == "" {
		r.Result = "{}"
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (session_id, source_path, content_hash, method, complexity,
		                       variable_count, processing_ms, result, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.SourcePath, r.ContentHash, r.Method, r.Complexity,
		r.VariableCount, r.ProcessingMS, r.Result, r.Error, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting analysis id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return id, nil
}

// GetAnalysis returns the analysis with the given id, or nil if absent.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, id int64) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	r, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting analysis %d: %w", id, err)
	}
	return r, nil
}

// LatestByHash returns the most recent analysis of identical content, or nil.
func (s *SQLiteStore) LatestByHash(ctx context.Context, hash string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE content_hash = ? ORDER BY id DESC LIMIT 1`, hash)
	r, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding analysis by hash: %w", err)
	}
	return r, nil
}

// ListAnalyses returns analyses newest first.
func (s *SQLiteStore) ListAnalyses(ctx context.Context, opts ListOpts) ([]*AnalysisRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses`
	args := []interface{}{}
	if opts.Method != "" {
		query += " WHERE method = ?"
		args = append(args, opts.Method)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var out []*AnalysisRecord
	for rows.Next() {
		r, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row rowScanner) (*AnalysisRecord, error) {
	r := &AnalysisRecord{}
	err := row.Scan(&r.ID, &r.SessionID, &r.SourcePath, &r.ContentHash, &r.Method, &r.Complexity,
		&r.VariableCount, &r.ProcessingMS, &r.Result, &r.Error, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}
