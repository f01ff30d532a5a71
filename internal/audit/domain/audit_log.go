package domain

import "time"

// AuditLog is one persisted security event.
type AuditLog struct {
	ID            string
	ActorUserID   string // who performed the action; the admin when impersonating
	SubjectUserID string // whose account or session was affected
	Action        string
	Resource      string
	ResourceID    string
	IP            string
	UserAgent     string
	Metadata      string // JSON object
	CreatedAt     time.Time
}

// Actions recorded by the auth core.
const (
	ActionLoginSuccess       = "login_success"
	ActionLoginFailure       = "login_failure"
	ActionLogout             = "logout"
	ActionSessionRevoke      = "session_revoke"
	ActionSessionsRevokeAll  = "sessions_revoke_all"
	ActionImpersonationStart = "impersonation_start"
	ActionImpersonationEnd   = "impersonation_end"
)

// Resources recorded by the auth core.
const (
	ResourceSession              = "session"
	ResourceImpersonationSession = "impersonation_session"
)
