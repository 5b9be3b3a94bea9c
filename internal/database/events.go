package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/77zv/EconomicNewsBot-acme/internal/events"
)

// CalendarEvent represents a calendar event record in the database.
// The tuple (title, event_time, impact, currency) is the identity: the table
// carries a unique constraint over it, and two fetch cycles producing the
// same tuple refer to the same logical event.
type CalendarEvent struct {
	EventID   int64
	Title     string
	Currency  events.Currency
	EventTime time.Time // naive wall-clock value stored as UTC
	Impact    events.Impact
	Forecast  string
	Previous  string
	Actual    sql.NullString
	Processed bool
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fingerprint returns the content hash of the event's identity tuple.
func (e *CalendarEvent) Fingerprint() string {
	return events.Fingerprint(e.Title, e.EventTime, e.Impact, e.Currency)
}

const eventColumns = `event_id, title, currency, event_time, impact, forecast, previous, actual, processed, source, created_at, updated_at`

func scanEvent(scan func(dest ...any) error) (*CalendarEvent, error) {
	var ev CalendarEvent
	if err := scan(
		&ev.EventID,
		&ev.Title,
		&ev.Currency,
		&ev.EventTime,
		&ev.Impact,
		&ev.Forecast,
		&ev.Previous,
		&ev.Actual,
		&ev.Processed,
		&ev.Source,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ev, nil
}

// UpsertEvent inserts the event if its identity tuple is absent; if present
// it refreshes forecast/previous only, leaving actual and processed
// untouched. The conflict resolution happens in a single statement so
// concurrent ingestion of the same identity cannot produce two rows or lose
// an update. Returns true if a new row was created.
func (db *DB) UpsertEvent(ctx context.Context, ev *CalendarEvent) (bool, error) {
	query := `
		INSERT INTO calendar_events (title, currency, event_time, impact, forecast, previous, processed, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, NOW(), NOW())
		ON CONFLICT (title, event_time, impact, currency)
		DO UPDATE SET forecast = EXCLUDED.forecast, previous = EXCLUDED.previous, updated_at = NOW()
		RETURNING event_id, (xmax = 0) AS inserted
	`
	var inserted bool
	err := db.conn.QueryRowContext(ctx, query,
		ev.Title,
		ev.Currency,
		ev.EventTime,
		ev.Impact,
		ev.Forecast,
		ev.Previous,
		ev.Source,
	).Scan(&ev.EventID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert event %q: %w", ev.Title, err)
	}
	return inserted, nil
}

// FindByTimestamp returns all events whose stored naive timestamp equals the
// given minute-granularity value. The scanner always queries an exact rounded
// minute, so equality is sufficient.
func (db *DB) FindByTimestamp(ctx context.Context, ts time.Time) ([]*CalendarEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE event_time = $1
	`
	rows, err := db.conn.QueryContext(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by timestamp: %w", err)
	}
	defer rows.Close()

	var evs []*CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// FindUnprocessedOlderThan returns unprocessed events whose naive timestamp
// is at or before the given cutoff. The cutoff must be computed in the naive
// representation by the caller.
func (db *DB) FindUnprocessedOlderThan(ctx context.Context, cutoff time.Time) ([]*CalendarEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE processed = FALSE AND event_time <= $1
		ORDER BY event_time ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed events: %w", err)
	}
	defer rows.Close()

	var evs []*CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// SetEventActual records the published actual value for an event and marks
// it processed. A once-set actual is never overwritten.
func (db *DB) SetEventActual(ctx context.Context, eventID int64, actual string) error {
	query := `
		UPDATE calendar_events
		SET actual = COALESCE(actual, $2), processed = TRUE, updated_at = NOW()
		WHERE event_id = $1
	`
	result, err := db.conn.ExecContext(ctx, query, eventID, actual)
	if err != nil {
		return fmt.Errorf("failed to set actual for event %d: %w", eventID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event not found: %d", eventID)
	}
	return nil
}

// DeleteOlderThan removes events whose naive timestamp is at or before the
// cutoff. With processedOnly set, only processed rows are swept; otherwise
// rows are removed regardless of processed state. Returns the number of rows
// deleted.
func (db *DB) DeleteOlderThan(ctx context.Context, cutoff time.Time, processedOnly bool) (int64, error) {
	query := `DELETE FROM calendar_events WHERE event_time <= $1`
	if processedOnly {
		query += ` AND processed = TRUE`
	}
	result, err := db.conn.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}
