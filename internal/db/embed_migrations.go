package db

import "embed"

// MigrationFS embeds the Postgres SQL migrations applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
