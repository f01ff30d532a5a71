package domain

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a session. Active moves to Expired or Revoked, never back.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusExpired || s == StatusRevoked
}

var (
	// ErrConflict is returned by Create when a session token collides with an existing row.
	ErrConflict = errors.New("session token conflict")
	// ErrInvalidTransition is returned when asked to move a session to Active.
	ErrInvalidTransition = errors.New("invalid session status transition")
)

// Session is an ordinary login session. Tokens issued at login carry SessionToken and are only
// honoured while the row is live.
type Session struct {
	ID               string
	UserID           string
	SessionToken     string
	RefreshTokenHash string // SHA-256 of the opaque refresh token; empty once the session has ended
	Status           Status
	ExpiresAt        time.Time
	LastActivity     time.Time
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
}

// IsLive reports whether the session is Active and not past its absolute expiry at now.
// Expiry is evaluated here, at read time; rows are not swept.
func (s *Session) IsLive(now time.Time) bool {
	return s != nil && s.Status == StatusActive && now.Before(s.ExpiresAt)
}

// ImpersonationSession lets AdminUserID act as TargetUserID. AdminUserID never equals TargetUserID.
type ImpersonationSession struct {
	ID           string
	AdminUserID  string
	TargetUserID string
	SessionToken string
	Reason       string
	Status       Status
	CreatedAt    time.Time
	ExpiresAt    time.Time
	EndedAt      *time.Time
}

// IsLive reports whether the impersonation session is Active and unexpired at now.
func (s *ImpersonationSession) IsLive(now time.Time) bool {
	return s != nil && s.Status == StatusActive && now.Before(s.ExpiresAt)
}

// ImpersonationSummary is an impersonation session with both usernames for display.
type ImpersonationSummary struct {
	ImpersonationSession
	AdminUsername  string
	TargetUsername string
}
