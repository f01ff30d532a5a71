package repository

import (
	"context"
	"errors"

	"truledgr/backend/internal/identity/domain"
)

// ErrAlreadyLinked is returned when the provider account is attached to some user already.
var ErrAlreadyLinked = errors.New("provider account already linked")

// Repository defines persistence for linked OAuth accounts.
type Repository interface {
	Create(ctx context.Context, a *domain.LinkedAccount) error
	ListByUser(ctx context.Context, userID string) ([]*domain.LinkedAccount, error)
	GetByProviderAccount(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.LinkedAccount, error)
}
