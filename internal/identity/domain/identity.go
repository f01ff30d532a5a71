package domain

import (
	"time"

	userdomain "truledgr/backend/internal/user/domain"
)

// LinkedAccount is an external OAuth identity attached to a user. Records are written by the
// OAuth integration; the auth core only reads them.
type LinkedAccount struct {
	ID             string
	UserID         string
	Provider       Provider
	ProviderUserID string
	Email          string
	CreatedAt      time.Time
}

// Provider names an external identity provider.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
	ProviderApple     Provider = "apple"
	ProviderGitHub    Provider = "github"
)

// Principal is the resolved identity of a request. User is the effective user: the
// impersonation target when Impersonation is set. Authorization decisions use User, never
// raw token claims.
type Principal struct {
	User         *userdomain.User
	SessionID    string
	SessionToken string
	// Impersonation is nil for ordinary sessions.
	Impersonation *ImpersonationContext
}

// ImpersonationContext records who is really driving an impersonated request.
type ImpersonationContext struct {
	AdminUserID string
	SessionID   string
	Reason      string
	ExpiresAt   time.Time
}

// IsImpersonating reports whether the principal is acting through an impersonation session.
func (p *Principal) IsImpersonating() bool {
	return p != nil && p.Impersonation != nil
}
