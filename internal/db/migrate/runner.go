// Package migrate applies the embedded Postgres migrations using golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"truledgr/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned by golang-migrate when already at the target version; Run maps it to nil.
var ErrNoChange = migrate.ErrNoChange

// Run applies migrations in direction ("up" or "down") against the Postgres dsn.
// SQLite databases are created from the bun models instead (see db.EnsureSchema).
func Run(dsn string, direction string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	if db.DetectDialect(dsn) != db.DialectPostgres {
		return fmt.Errorf("migrations target postgres; use DB_AUTO_MIGRATE for sqlite")
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
