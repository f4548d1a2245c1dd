// Command seed_state copies a yaml phase state file into Postgres, for moving
// a server from the yaml store driver to the postgres one.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/timing/go/internal/dbconfig"
	"github.com/mcdev12/timing/go/internal/store/yamlstore"
)

func main() {
	path := "timing-state.yml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1) Load the yaml snapshot
	src, err := yamlstore.New(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	rec, err := src.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", path, err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "database config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	entries := rec.Entries()
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var (
		total   = len(keys)
		written int
		errs    int
	)
	for _, key := range keys {
		_, err := pool.Exec(ctx, `
            INSERT INTO timing_phase_state (key, value, updated_at)
            VALUES ($1, $2, now())
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
        `, key, entries[key])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error writing %s: %v\n", key, err)
			errs++
			continue
		}
		written++
	}

	// 4) Print summary

	fmt.Printf(
		"State seed complete: %d total, %d written, %d errors\n",
		total, written, errs,
	)
	if errs > 0 {
		os.Exit(1)
	}
}
