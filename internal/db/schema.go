package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"truledgr/backend/internal/db/models"
)

// EnsureSchema creates every table and secondary index if missing. It is used for SQLite
// and tests; Postgres deployments apply the embedded migrations with cmd/migrate.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*models.User)(nil),
		(*models.Session)(nil),
		(*models.ImpersonationSession)(nil),
		(*models.AuditLog)(nil),
		(*models.LinkedAccount)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", m, err)
		}
	}
	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*models.Session)(nil), "idx_sessions_user_id", "user_id"},
		{(*models.ImpersonationSession)(nil), "idx_impersonation_sessions_admin_user_id", "admin_user_id"},
		{(*models.AuditLog)(nil), "idx_audit_logs_actor_user_id", "actor_user_id"},
		{(*models.LinkedAccount)(nil), "idx_linked_accounts_user_id", "user_id"},
	}
	for _, ix := range indexes {
		if _, err := db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.column).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}
