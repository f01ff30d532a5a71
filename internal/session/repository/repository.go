package repository

import (
	"context"
	"time"

	"truledgr/backend/internal/session/domain"
)

// Repository is the session store for ordinary and impersonation sessions.
//
// Lookups return (nil, nil) for missing rows. Status writes are monotone: only rows that are
// currently Active change, and the returned bool reports whether one did. "Active" listings
// filter on expires_at > now; rows past expiry stay Active in storage until a caller marks them.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByToken(ctx context.Context, sessionToken string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
	SetStatus(ctx context.Context, id string, status domain.Status) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string) (int, error)
	Touch(ctx context.Context, id string, at time.Time) error

	CreateImpersonation(ctx context.Context, s *domain.ImpersonationSession) error
	GetImpersonationByID(ctx context.Context, id string) (*domain.ImpersonationSession, error)
	GetImpersonationByToken(ctx context.Context, sessionToken string) (*domain.ImpersonationSession, error)
	SetImpersonationStatus(ctx context.Context, id string, status domain.Status, at time.Time) (bool, error)
	EndImpersonation(ctx context.Context, id, adminUserID string, now time.Time) (bool, error)
	ListImpersonationsByAdmin(ctx context.Context, adminUserID string) ([]*domain.ImpersonationSummary, error)
}
