package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"truledgr/backend/internal/db"
	"truledgr/backend/internal/db/models"
	"truledgr/backend/internal/identity/domain"
)

// BunRepository stores linked accounts with bun.
type BunRepository struct {
	db bun.IDB
}

// NewBunRepository returns a linked-account repository backed by db.
func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

// Create inserts a. The ID must be set.
func (r *BunRepository) Create(ctx context.Context, a *domain.LinkedAccount) error {
	m := &models.LinkedAccount{
		ID:             a.ID,
		UserID:         a.UserID,
		Provider:       string(a.Provider),
		ProviderUserID: a.ProviderUserID,
		CreatedAt:      a.CreatedAt.UTC(),
	}
	if a.Email != "" {
		m.Email = &a.Email
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyLinked
		}
		return err
	}
	return nil
}

// ListByUser returns the user's linked accounts, oldest first.
func (r *BunRepository) ListByUser(ctx context.Context, userID string) ([]*domain.LinkedAccount, error) {
	var rows []models.LinkedAccount
	if err := r.db.NewSelect().Model(&rows).Where("la.user_id = ?", userID).OrderExpr("la.created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.LinkedAccount, len(rows))
	for i := range rows {
		out[i] = toDomain(&rows[i])
	}
	return out, nil
}

// GetByProviderAccount returns the link for provider/providerUserID, or nil if not found.
func (r *BunRepository) GetByProviderAccount(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.LinkedAccount, error) {
	m := new(models.LinkedAccount)
	err := r.db.NewSelect().Model(m).
		Where("la.provider = ?", string(provider)).
		Where("la.provider_user_id = ?", providerUserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(m), nil
}

func toDomain(m *models.LinkedAccount) *domain.LinkedAccount {
	a := &domain.LinkedAccount{
		ID:             m.ID,
		UserID:         m.UserID,
		Provider:       domain.Provider(m.Provider),
		ProviderUserID: m.ProviderUserID,
		CreatedAt:      m.CreatedAt.UTC(),
	}
	if m.Email != nil {
		a.Email = *m.Email
	}
	return a
}
