package repository

import (
	"context"
	"errors"

	"truledgr/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	ListAdmins(ctx context.Context) ([]*domain.User, error)
}

// ErrDuplicate is returned by Create when the username or email is taken.
var ErrDuplicate = errors.New("username or email already exists")
