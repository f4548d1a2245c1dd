package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/timing/go/internal/events"
	"github.com/mcdev12/timing/go/internal/sqlutil"
)

// EventLog appends lifecycle events to timing_events. Re-publishing an event
// with the same ID is a no-op, so retries are safe.
type EventLog struct {
	db *sql.DB
}

func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Publish(ctx context.Context, event events.Event) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO timing_events (id, event_type, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		event.ID,
		string(event.Type),
		sqlutil.ToNullString(event.Kind),
		sqlutil.ToNullRawMessage(event.Payload),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", event.Type, err)
	}
	return nil
}
