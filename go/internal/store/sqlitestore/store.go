// Package sqlitestore persists the phase record in a SQLite key/value table.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mcdev12/timing/go/internal/phase"
	"github.com/mcdev12/timing/go/internal/sqlutil"
)

const schema = `CREATE TABLE IF NOT EXISTS phase_state (
	key        TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store persists the phase record in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) a SQLite database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create phase_state table: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Load(ctx context.Context) (phase.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, value FROM phase_state`)
	if err != nil {
		return phase.Record{}, fmt.Errorf("query phase state: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]int64)
	for rows.Next() {
		var (
			key   string
			value int64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return phase.Record{}, fmt.Errorf("scan phase state: %w", err)
		}
		entries[key] = value
	}
	if err := rows.Err(); err != nil {
		return phase.Record{}, fmt.Errorf("iterate phase state: %w", err)
	}
	return phase.RecordFromEntries(entries), nil
}

func (s *Store) Save(ctx context.Context, rec phase.Record) error {
	return sqlutil.Run(ctx, s.sqlDB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO phase_state (key, value, updated_at)
			VALUES (?, ?, CAST(strftime('%s','now') AS INTEGER))
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare phase state upsert: %w", err)
		}
		defer stmt.Close()

		for key, value := range rec.Entries() {
			if _, err := stmt.ExecContext(ctx, key, value); err != nil {
				return fmt.Errorf("upsert %s: %w", key, err)
			}
		}
		return nil
	})
}
