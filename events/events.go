// Package events records snapshot lifecycle events to SQLite. Persistence
// failures are logged via slog and never propagate: a failing event store
// must not block a collect run.
package events

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/branchsnap/branchsnap/idgen"
)

// Schema creates the snapshot_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshot_events (
	event_id    TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL,
	snapshot_id TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	state       TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshot_events_request ON snapshot_events (request_id, created_at);
`

// Event is one lifecycle record.
type Event struct {
	RequestID  string
	SnapshotID string
	Type       string // "collect_started", "collect_finished", "collect_failed", "recollected", "destroyed"
	State      string // snapshot state after the event, when known
	Detail     string // optional free text (error message, size)
}

// Logger writes events.
type Logger struct {
	db    *sql.DB
	newID idgen.Generator
}

// NewLogger creates an event logger backed by db. Call Init once at startup.
func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db, newID: idgen.Event}
}

// Init creates the snapshot_events table if it doesn't exist.
func (l *Logger) Init(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, Schema)
	return err
}

// Log records an event. Non-blocking contract: errors go to slog only.
func (l *Logger) Log(ctx context.Context, e Event) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO snapshot_events (event_id, request_id, snapshot_id, event_type, state, detail, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		l.newID(), e.RequestID, e.SnapshotID, e.Type, e.State, e.Detail, time.Now().Unix())
	if err != nil {
		slog.Error("events: log failed", "error", err, "event_type", e.Type, "request_id", e.RequestID)
	}
}

// ByRequest returns the events for a request, oldest first, up to limit.
func (l *Logger) ByRequest(ctx context.Context, requestID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT request_id, snapshot_id, event_type, state, detail
		FROM snapshot_events WHERE request_id = ?
		ORDER BY created_at ASC, event_id ASC LIMIT ?`, requestID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RequestID, &e.SnapshotID, &e.Type, &e.State, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
