package store

import (
	"context"
	"fmt"
	"time"
)

// LogEvent appends a workflow status change to the event log.
func (s *SQLiteStore) LogEvent(ctx context.Context, e *SessionEvent) error {
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events (session_id, from_status, to_status, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.From, e.To, e.Message, now,
	)
	if err != nil {
		return fmt.Errorf("logging event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting event id: %w", err)
	}

	e.ID = id
	e.CreatedAt = now
	return nil
}

// SessionEvents returns the events of one session in the order they were
// logged.
func (s *SQLiteStore) SessionEvents(ctx context.Context, sessionID string) ([]*SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, from_status, to_status, message, created_at
		 FROM session_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing session events: %w", err)
	}
	defer rows.Close()

	var out []*SessionEvent
	for rows.Next() {
		e := &SessionEvent{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.From, &e.To, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
