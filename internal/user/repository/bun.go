package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"truledgr/backend/internal/db"
	"truledgr/backend/internal/db/models"
	"truledgr/backend/internal/user/domain"
)

// BunRepository stores users with bun on Postgres or SQLite.
type BunRepository struct {
	db bun.IDB
}

// NewBunRepository returns a user repository backed by db.
func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *BunRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "u.id = ?", id)
}

// GetByUsername returns the user with the given username, or nil if not found.
func (r *BunRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "u.username = ?", username)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *BunRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "u.email = ?", email)
}

func (r *BunRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	m := new(models.User)
	err := r.db.NewSelect().Model(m).Where(where, arg).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return modelToDomain(m), nil
}

// Create persists u. The ID must be set; ErrDuplicate is returned when username or email is taken.
func (r *BunRepository) Create(ctx context.Context, u *domain.User) error {
	m := domainToModel(u)
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Update writes every mutable column of u. Missing users are a no-op.
func (r *BunRepository) Update(ctx context.Context, u *domain.User) error {
	m := domainToModel(u)
	_, err := r.db.NewUpdate().Model(m).
		Column("username", "email", "full_name", "password_hash", "is_active", "is_admin", "updated_at").
		WherePK().
		Exec(ctx)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ListAdmins returns every user with the admin flag, ordered by username.
func (r *BunRepository) ListAdmins(ctx context.Context) ([]*domain.User, error) {
	var rows []models.User
	if err := r.db.NewSelect().Model(&rows).Where("u.is_admin = ?", true).Order("u.username ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, modelToDomain(&rows[i]))
	}
	return out, nil
}

func modelToDomain(m *models.User) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		FullName:     m.FullName,
		PasswordHash: m.PasswordHash,
		IsActive:     m.IsActive,
		IsAdmin:      m.IsAdmin,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func domainToModel(u *domain.User) *models.User {
	return &models.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}
