// Package models holds the bun row types shared by the stores and by schema creation.
package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a ledger user. PasswordHash always holds a bcrypt hash, never plaintext.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk"`
	Username     string    `bun:"username,notnull,unique"`
	Email        string    `bun:"email,notnull,unique"`
	FullName     string    `bun:"full_name,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	IsActive     bool      `bun:"is_active,notnull"`
	IsAdmin      bool      `bun:"is_admin,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// Session is an ordinary login session. RefreshTokenHash is NULL once the session has ended.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID               string    `bun:"id,pk"`
	UserID           string    `bun:"user_id,notnull"`
	SessionToken     string    `bun:"session_token,notnull,unique"`
	RefreshTokenHash *string   `bun:"refresh_token_hash,unique"`
	Status           string    `bun:"status,notnull"`
	ExpiresAt        time.Time `bun:"expires_at,notnull"`
	LastActivity     time.Time `bun:"last_activity,notnull"`
	IPAddress        *string   `bun:"ip_address"`
	UserAgent        *string   `bun:"user_agent"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

// ImpersonationSession lets AdminUserID act as TargetUserID until ExpiresAt or EndedAt.
type ImpersonationSession struct {
	bun.BaseModel `bun:"table:impersonation_sessions,alias:imp"`

	ID           string     `bun:"id,pk"`
	AdminUserID  string     `bun:"admin_user_id,notnull"`
	TargetUserID string     `bun:"target_user_id,notnull"`
	SessionToken string     `bun:"session_token,notnull,unique"`
	Reason       *string    `bun:"reason"`
	Status       string     `bun:"status,notnull"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	ExpiresAt    time.Time  `bun:"expires_at,notnull"`
	EndedAt      *time.Time `bun:"ended_at"`
}

// ImpersonationSummary is an ImpersonationSession joined with both usernames.
type ImpersonationSummary struct {
	ImpersonationSession `bun:",extend"`

	AdminUsername  *string `bun:"admin_username"`
	TargetUsername *string `bun:"target_username"`
}

// AuditLog is one security-relevant event. Metadata is a JSON object encoded as text.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID            string    `bun:"id,pk"`
	ActorUserID   *string   `bun:"actor_user_id"`
	SubjectUserID *string   `bun:"subject_user_id"`
	Action        string    `bun:"action,notnull"`
	Resource      string    `bun:"resource,notnull"`
	ResourceID    *string   `bun:"resource_id"`
	IP            string    `bun:"ip,notnull"`
	UserAgent     string    `bun:"user_agent,notnull"`
	Metadata      string    `bun:"metadata,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// LinkedAccount records an external OAuth identity attached to a user.
type LinkedAccount struct {
	bun.BaseModel `bun:"table:linked_accounts,alias:la"`

	ID             string    `bun:"id,pk"`
	UserID         string    `bun:"user_id,notnull"`
	Provider       string    `bun:"provider,notnull,unique:provider_account"`
	ProviderUserID string    `bun:"provider_user_id,notnull,unique:provider_account"`
	Email          *string   `bun:"email"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}
