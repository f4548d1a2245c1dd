// Package postgres persists the phase record and the event log in Postgres
// and accepts countdown commands over LISTEN/NOTIFY.
package postgres

// Schema creates every table the package uses. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS timing_phase_state (
	key        TEXT PRIMARY KEY,
	value      BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS timing_events (
	id         UUID PRIMARY KEY,
	event_type TEXT NOT NULL,
	kind       TEXT,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS timing_events_created_at_idx ON timing_events (created_at);
`

// DefaultCommandChannel is the NOTIFY channel commands are read from.
const DefaultCommandChannel = "timing_commands"
