package action

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200

	// eventTimeFormat is fixed width so occurred_at sorts lexically.
	eventTimeFormat = "2006-01-02T15:04:05.000000Z"
)

// SQLiteEventStore persists events in the switch_events table.
type SQLiteEventStore struct {
	db *sql.DB
}

// NewSQLiteEventStore creates a store on an open, migrated database.
func NewSQLiteEventStore(db *sql.DB) *SQLiteEventStore {
	return &SQLiteEventStore{db: db}
}

// RecordEvent inserts one event.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - ev: The event; Switch and Action are required
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteEventStore) RecordEvent(ctx context.Context, ev Event) error {
	if ev.Switch == "" {
		return fmt.Errorf("switch name is required")
	}
	if ev.Source == "" {
		ev.Source = SourceHub
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO switch_events (switch_name, action, success, state, source, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Switch,
		ev.Action,
		boolToInt(ev.Success),
		boolToInt(ev.On),
		ev.Source,
		ev.OccurredAt.UTC().Format(eventTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting switch event: %w", err)
	}
	return nil
}

// Recent returns the latest events for a switch, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - name: Switch friendly name
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Event: Events ordered by occurred_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *SQLiteEventStore) Recent(ctx context.Context, name string, limit int) ([]Event, error) {
	if name == "" {
		return nil, fmt.Errorf("switch name is required")
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, switch_name, action, success, state, source, occurred_at
		 FROM switch_events
		 WHERE switch_name = ?
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT ?`,
		name,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying switch events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var ev Event
		var success, state int
		var occurredAt string

		if err := rows.Scan(&ev.ID, &ev.Switch, &ev.Action, &success, &state, &ev.Source, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning switch event: %w", err)
		}
		ev.Success = success == 1
		ev.On = state == 1

		ev.OccurredAt, err = parseEventTimestamp(occurredAt)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating switch events: %w", err)
	}
	return events, nil
}

// Prune deletes events older than the given duration.
func (s *SQLiteEventStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(eventTimeFormat)
	result, err := s.db.ExecContext(ctx, "DELETE FROM switch_events WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting switch events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// RunRetention prunes events older than retention now and then every
// interval, until ctx is cancelled. Failures are logged and retried on the
// next tick.
func (s *SQLiteEventStore) RunRetention(ctx context.Context, retention, interval time.Duration, logger Logger) {
	logger = orNoop(logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("pruning switch events failed", "error", err)
		case n > 0:
			logger.Info("pruned switch events", "deleted", n, "retention", retention.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// parseEventTimestamp parses occurred_at as written by RecordEvent or by the
// column default.
func parseEventTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("occurred_at is empty")
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing occurred_at: %w", err)
	}
	return ts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
