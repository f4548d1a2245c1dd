package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/config"
	"github.com/mcdev12/timing/go/internal/dbconfig"
	"github.com/mcdev12/timing/go/internal/phase"
	"github.com/mcdev12/timing/go/internal/store/postgres"
	"github.com/mcdev12/timing/go/internal/store/sqlitestore"
	"github.com/mcdev12/timing/go/internal/store/yamlstore"
)

// storage is the phase store plus, for the postgres driver, its database.
type storage struct {
	store phase.Store
	db    *sql.DB
	dsn   string
	close func() error
}

func postgresDSN(cfg *config.Config) (string, error) {
	if cfg.Store.DSN != "" {
		return cfg.Store.DSN, nil
	}
	dbCfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		return "", err
	}
	return dbCfg.DSN(), nil
}

func setupStore(ctx context.Context, cfg *config.Config) (*storage, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory phase store, countdowns will not survive a restart")
		return &storage{store: phase.NewMemoryStore(phase.Record{}), close: noop}, nil

	case config.StoreYAML:
		store, err := yamlstore.New(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Store.Path).Msg("using yaml phase store")
		return &storage{store: store, close: noop}, nil

	case config.StoreSQLite:
		store, err := sqlitestore.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Store.Path).Msg("using sqlite phase store")
		return &storage{store: store, close: store.Close}, nil

	case config.StorePostgres:
		dsn, err := postgresDSN(cfg)
		if err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to postgres phase store")
		return &storage{store: postgres.NewStore(db), db: db, dsn: dsn, close: db.Close}, nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreDriver, cfg.Store.Driver)
	}
}
