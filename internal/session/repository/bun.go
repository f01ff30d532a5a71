package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"truledgr/backend/internal/db"
	"truledgr/backend/internal/db/models"
	"truledgr/backend/internal/session/domain"
)

// BunRepository implements Repository with bun on Postgres or SQLite.
type BunRepository struct {
	db bun.IDB
}

// NewBunRepository returns a session store backed by db.
func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

// Create inserts s. The ID must be set. A duplicate session or refresh token yields domain.ErrConflict.
func (r *BunRepository) Create(ctx context.Context, s *domain.Session) error {
	if _, err := r.db.NewInsert().Model(sessionToModel(s)).Exec(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

// GetByID returns the session for id, or nil if not found.
func (r *BunRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.getSession(ctx, "s.id = ?", id)
}

// GetByToken returns the session holding sessionToken, or nil if not found.
func (r *BunRepository) GetByToken(ctx context.Context, sessionToken string) (*domain.Session, error) {
	return r.getSession(ctx, "s.session_token = ?", sessionToken)
}

func (r *BunRepository) getSession(ctx context.Context, where string, arg any) (*domain.Session, error) {
	m := new(models.Session)
	if err := r.db.NewSelect().Model(m).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sessionToDomain(m), nil
}

// ListActiveByUser returns the user's Active sessions that have not expired at now, newest first.
func (r *BunRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	var rows []models.Session
	err := r.db.NewSelect().Model(&rows).
		Where("s.user_id = ?", userID).
		Where("s.status = ?", string(domain.StatusActive)).
		Where("s.expires_at > ?", now.UTC()).
		OrderExpr("s.created_at DESC, s.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, len(rows))
	for i := range rows {
		out[i] = sessionToDomain(&rows[i])
	}
	return out, nil
}

// SetStatus moves an Active session to status and clears its refresh token hash.
// It reports false when the row is missing or already ended.
func (r *BunRepository) SetStatus(ctx context.Context, id string, status domain.Status) (bool, error) {
	if status == domain.StatusActive || !status.Valid() {
		return false, domain.ErrInvalidTransition
	}
	res, err := r.db.NewUpdate().Model((*models.Session)(nil)).
		Set("status = ?", string(status)).
		Set("refresh_token_hash = NULL").
		Where("id = ?", id).
		Where("status = ?", string(domain.StatusActive)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res) > 0, nil
}

// RevokeAllByUser revokes every Active session of userID and returns how many changed.
func (r *BunRepository) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	res, err := r.db.NewUpdate().Model((*models.Session)(nil)).
		Set("status = ?", string(domain.StatusRevoked)).
		Set("refresh_token_hash = NULL").
		Where("user_id = ?", userID).
		Where("status = ?", string(domain.StatusActive)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return int(affected(res)), nil
}

// Touch records activity on an Active session. It never changes status or expiry.
func (r *BunRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().Model((*models.Session)(nil)).
		Set("last_activity = ?", at.UTC()).
		Where("id = ?", id).
		Where("status = ?", string(domain.StatusActive)).
		Exec(ctx)
	return err
}

// CreateImpersonation inserts s. A duplicate session token yields domain.ErrConflict.
func (r *BunRepository) CreateImpersonation(ctx context.Context, s *domain.ImpersonationSession) error {
	if _, err := r.db.NewInsert().Model(impersonationToModel(s)).Exec(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

// GetImpersonationByID returns the impersonation session for id, or nil if not found.
func (r *BunRepository) GetImpersonationByID(ctx context.Context, id string) (*domain.ImpersonationSession, error) {
	return r.getImpersonation(ctx, "imp.id = ?", id)
}

// GetImpersonationByToken returns the impersonation session holding sessionToken, or nil.
func (r *BunRepository) GetImpersonationByToken(ctx context.Context, sessionToken string) (*domain.ImpersonationSession, error) {
	return r.getImpersonation(ctx, "imp.session_token = ?", sessionToken)
}

func (r *BunRepository) getImpersonation(ctx context.Context, where string, arg any) (*domain.ImpersonationSession, error) {
	m := new(models.ImpersonationSession)
	if err := r.db.NewSelect().Model(m).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return impersonationToDomain(m), nil
}

// SetImpersonationStatus moves an Active impersonation session to status. Revoked rows also get ended_at.
func (r *BunRepository) SetImpersonationStatus(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error) {
	if status == domain.StatusActive || !status.Valid() {
		return false, domain.ErrInvalidTransition
	}
	q := r.db.NewUpdate().Model((*models.ImpersonationSession)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Where("status = ?", string(domain.StatusActive))
	if status == domain.StatusRevoked {
		q = q.Set("ended_at = ?", at.UTC())
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res) > 0, nil
}

// EndImpersonation revokes the session only if it belongs to adminUserID and is Active and
// unexpired at now, in one conditional write. It reports false otherwise.
func (r *BunRepository) EndImpersonation(ctx context.Context, id, adminUserID string, now time.Time) (bool, error) {
	res, err := r.db.NewUpdate().Model((*models.ImpersonationSession)(nil)).
		Set("status = ?", string(domain.StatusRevoked)).
		Set("ended_at = ?", now.UTC()).
		Where("id = ?", id).
		Where("admin_user_id = ?", adminUserID).
		Where("status = ?", string(domain.StatusActive)).
		Where("expires_at > ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return affected(res) > 0, nil
}

// EndAllImpersonationsByAdmin revokes every Active impersonation session adminUserID started
// and returns how many changed.
func (r *BunRepository) EndAllImpersonationsByAdmin(ctx context.Context, adminUserID string, now time.Time) (int, error) {
	res, err := r.db.NewUpdate().Model((*models.ImpersonationSession)(nil)).
		Set("status = ?", string(domain.StatusRevoked)).
		Set("ended_at = ?", now.UTC()).
		Where("admin_user_id = ?", adminUserID).
		Where("status = ?", string(domain.StatusActive)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return int(affected(res)), nil
}

// ListImpersonationsByAdmin returns every impersonation session adminUserID started, in any
// status, newest first, with admin and target usernames.
func (r *BunRepository) ListImpersonationsByAdmin(ctx context.Context, adminUserID string) ([]*domain.ImpersonationSummary, error) {
	var rows []models.ImpersonationSummary
	err := r.db.NewSelect().Model(&rows).
		ColumnExpr("imp.*").
		ColumnExpr("au.username AS admin_username").
		ColumnExpr("tu.username AS target_username").
		Join("LEFT JOIN users AS au ON au.id = imp.admin_user_id").
		Join("LEFT JOIN users AS tu ON tu.id = imp.target_user_id").
		Where("imp.admin_user_id = ?", adminUserID).
		OrderExpr("imp.created_at DESC, imp.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ImpersonationSummary, len(rows))
	for i := range rows {
		out[i] = &domain.ImpersonationSummary{
			ImpersonationSession: *impersonationToDomain(&rows[i].ImpersonationSession),
			AdminUsername:        deref(rows[i].AdminUsername),
			TargetUsername:       deref(rows[i].TargetUsername),
		}
	}
	return out, nil
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
