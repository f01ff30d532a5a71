// Package service manages user records. Every path that sets a credential hashes it first.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"truledgr/backend/internal/db"
	"truledgr/backend/internal/security"
	"truledgr/backend/internal/user/domain"
	userrepo "truledgr/backend/internal/user/repository"
)

var (
	ErrUserExists   = errors.New("username or email already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// CreateInput is the data needed to register a user. Password is plaintext and is hashed here.
type CreateInput struct {
	Username string
	Email    string
	FullName string
	Password string
	IsAdmin  bool
}

// Service creates and administers users.
type Service struct {
	repo   userrepo.Repository
	hasher *security.Hasher
	now    func() time.Time
}

// NewService returns a user service. hasher must be the same one used by login.
func NewService(repo userrepo.Repository, hasher *security.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher, now: time.Now}
}

// Create validates in, hashes the password and persists a new active user.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.User, error) {
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		ID:           db.NewID(),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      in.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// EnsureUser returns the user with in.Username, creating it when missing.
func (s *Service) EnsureUser(ctx context.Context, in CreateInput) (*domain.User, bool, error) {
	existing, err := s.repo.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	u, err := s.Create(ctx, in)
	return u, err == nil, err
}

// SetPassword replaces the stored credential of username with a hash of password.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.mutate(ctx, username, func(u *domain.User) { u.PasswordHash = hash })
}

// SetAdmin grants or removes the admin flag.
func (s *Service) SetAdmin(ctx context.Context, username string, admin bool) (*domain.User, error) {
	var out *domain.User
	err := s.mutate(ctx, username, func(u *domain.User) {
		u.IsAdmin = admin
		out = u
	})
	return out, err
}

// Deactivate disables login for username. Existing sessions are left to the caller to revoke.
func (s *Service) Deactivate(ctx context.Context, username string) (*domain.User, error) {
	var out *domain.User
	err := s.mutate(ctx, username, func(u *domain.User) {
		u.IsActive = false
		out = u
	})
	return out, err
}

// ListAdmins returns all admin users.
func (s *Service) ListAdmins(ctx context.Context) ([]*domain.User, error) {
	return s.repo.ListAdmins(ctx)
}

// GetByUsername returns the user or ErrUserNotFound.
func (s *Service) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *Service) mutate(ctx context.Context, username string, fn func(*domain.User)) error {
	if err := validation.Validate(username, validation.Required); err != nil {
		return err
	}
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	fn(u)
	u.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, u)
}
