package interceptors

import (
	"context"

	identitydomain "truledgr/backend/internal/identity/domain"
)

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	clientKey    = contextKey{"client"}
)

// WithPrincipal returns a context carrying the resolved principal.
func WithPrincipal(ctx context.Context, p *identitydomain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the principal from ctx and true if set; otherwise nil, false.
func GetPrincipal(ctx context.Context) (*identitydomain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*identitydomain.Principal)
	return p, ok && p != nil
}

// GetUserID returns the effective user id from ctx and true if a principal is set.
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok || p.User == nil {
		return "", false
	}
	return p.User.ID, true
}

// GetSessionID returns the session id of the principal in ctx. For impersonated requests this
// is the impersonation session id.
func GetSessionID(ctx context.Context) (string, bool) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return "", false
	}
	return p.SessionID, true
}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClient returns a context carrying the caller's IP and user agent.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey, clientInfo{ip: ip, userAgent: userAgent})
}

// Provenance returns the client IP and user agent stored by WithClient. It has the signature
// of audit.ProvenanceExtractor.
func Provenance(ctx context.Context) (ip, userAgent string) {
	c, _ := ctx.Value(clientKey).(clientInfo)
	return c.ip, c.userAgent
}
