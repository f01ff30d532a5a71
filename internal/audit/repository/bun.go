package repository

import (
	"context"

	"github.com/uptrace/bun"

	"truledgr/backend/internal/audit/domain"
	"truledgr/backend/internal/db/models"
)

// BunRepository stores audit logs with bun.
type BunRepository struct {
	db bun.IDB
}

// NewBunRepository returns an audit repository backed by db.
func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

// Create inserts a. The ID must be set.
func (r *BunRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	m := &models.AuditLog{
		ID:            a.ID,
		ActorUserID:   nullable(a.ActorUserID),
		SubjectUserID: nullable(a.SubjectUserID),
		Action:        a.Action,
		Resource:      a.Resource,
		ResourceID:    nullable(a.ResourceID),
		IP:            a.IP,
		UserAgent:     a.UserAgent,
		Metadata:      a.Metadata,
		CreatedAt:     a.CreatedAt.UTC(),
	}
	if m.Metadata == "" {
		m.Metadata = "{}"
	}
	_, err := r.db.NewInsert().Model(m).Exec(ctx)
	return err
}

// List returns audit entries newest first.
func (r *BunRepository) List(ctx context.Context, userID string, limit, offset int) ([]*domain.AuditLog, error) {
	var rows []models.AuditLog
	q := r.db.NewSelect().Model(&rows)
	if userID != "" {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("al.actor_user_id = ?", userID).WhereOr("al.subject_user_id = ?", userID)
		})
	}
	if err := q.OrderExpr("al.created_at DESC, al.id DESC").Limit(limit).Offset(offset).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, len(rows))
	for i, m := range rows {
		out[i] = &domain.AuditLog{
			ID:            m.ID,
			ActorUserID:   deref(m.ActorUserID),
			SubjectUserID: deref(m.SubjectUserID),
			Action:        m.Action,
			Resource:      m.Resource,
			ResourceID:    deref(m.ResourceID),
			IP:            m.IP,
			UserAgent:     m.UserAgent,
			Metadata:      m.Metadata,
			CreatedAt:     m.CreatedAt.UTC(),
		}
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
