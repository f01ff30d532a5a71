// migrate applies the embedded SQL migrations to Postgres, or creates the schema from the
// bun models when DATABASE_URL points at SQLite. Run via go run ./cmd/migrate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"truledgr/backend/internal/config"
	"truledgr/backend/internal/db"
	"truledgr/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	if db.DetectDialect(cfg.DatabaseURL) == db.DialectSQLite {
		if *direction != "up" {
			fmt.Fprintln(os.Stderr, "migrate: only -direction=up is supported for SQLite")
			os.Exit(1)
		}
		ctx := context.Background()
		bunDB, err := db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "db:", err)
			os.Exit(1)
		}
		defer db.Close(bunDB)
		if err := db.EnsureSchema(ctx, bunDB); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
