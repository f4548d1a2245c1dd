package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mcdev12/timing/go/internal/phase"
	"github.com/mcdev12/timing/go/internal/sqlutil"
)

// Open connects to Postgres with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Store persists the phase record in the timing_phase_state table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Load(ctx context.Context) (phase.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM timing_phase_state`)
	if err != nil {
		return phase.Record{}, fmt.Errorf("failed to query phase state: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]int64)
	for rows.Next() {
		var (
			key   string
			value int64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return phase.Record{}, fmt.Errorf("failed to scan phase state: %w", err)
		}
		entries[key] = value
	}
	if err := rows.Err(); err != nil {
		return phase.Record{}, fmt.Errorf("failed to read phase state: %w", err)
	}
	return phase.RecordFromEntries(entries), nil
}

func (s *Store) Save(ctx context.Context, rec phase.Record) error {
	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		for key, value := range rec.Entries() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO timing_phase_state (key, value, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
				key, value)
			if err != nil {
				return fmt.Errorf("failed to upsert %s: %w", key, err)
			}
		}
		return nil
	})
}
