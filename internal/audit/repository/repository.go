package repository

import (
	"context"

	"truledgr/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// List returns the newest entries first. An empty userID matches every entry; otherwise
	// entries where the user is actor or subject.
	List(ctx context.Context, userID string, limit, offset int) ([]*domain.AuditLog, error)
}
