// Package ledger keeps an append-only history of what happened to the panel:
// state changes, sink failures and sensor readings.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventPanelChanged EventType = "panel_changed"
	EventSinkFailed   EventType = "sink_failed"
	EventSensorRead   EventType = "sensor_read"
)

// DefaultLimit caps queries that do not set one.
const DefaultLimit = 100

// Entry is one recorded event.
type Entry struct {
	ID             int64          `json:"id"`
	EventType      EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	Payload        map[string]any `json:"payload,omitempty"`
	Source         string         `json:"source,omitempty"`
	IdempotencyKey string         `json:"-"`
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Types  []EventType
	Source string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Ledger provides append-only event logging with deduplication
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append records an event under a fresh idempotency key and returns the key.
func (l *Ledger) Append(eventType EventType, source string, payload map[string]any) (string, error) {
	key := uuid.NewString()
	_, err := l.AppendWithKey(eventType, key, source, payload)
	return key, err
}

// AppendWithKey records an event unless one with the same key exists. The
// first writer wins. Reports whether a row was inserted.
func (l *Ledger) AppendWithKey(eventType EventType, idempotencyKey, source string, payload map[string]any) (bool, error) {
	var body sql.NullString
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return false, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		body = sql.NullString{String: string(b), Valid: true}
	}

	res, err := l.db.Exec(`
		INSERT OR IGNORE INTO event_ledger (event_type, timestamp, payload, source, idempotency_key)
		VALUES (?, ?, ?, ?, ?)
	`, string(eventType), l.now().UnixMilli(), body, source, idempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to append %s: %w", eventType, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Has reports whether an event with the key was recorded. An empty key
// never matches.
func (l *Ledger) Has(idempotencyKey string) bool {
	if idempotencyKey == "" {
		return false
	}
	var one int
	err := l.db.QueryRow(`SELECT 1 FROM event_ledger WHERE idempotency_key = ? LIMIT 1`, idempotencyKey).Scan(&one)
	return err == nil
}

// Query returns matching entries, newest first.
func (l *Ledger) Query(ctx context.Context, f Filter) ([]Entry, error) {
	var where []string
	var args []any

	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "event_type IN ("+strings.Join(marks, ",")+")")
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.Until.UnixMilli())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := `SELECT id, event_type, timestamp, payload, source, idempotency_key FROM event_ledger`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetByType returns the newest entries of one type.
func (l *Ledger) GetByType(eventType EventType, limit int) ([]Entry, error) {
	return l.Query(context.Background(), Filter{Types: []EventType{eventType}, Limit: limit})
}

// DeleteOlderThan removes entries older than retention.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UnixMilli()
	res, err := l.db.Exec(`DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload, source, key sql.NullString
		var ts int64

		if err := rows.Scan(&e.ID, &e.EventType, &ts, &payload, &source, &key); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Source = source.String
		e.IdempotencyKey = key.String

		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entry %d payload: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
