package rbac

import (
	"context"

	identitydomain "truledgr/backend/internal/identity/domain"
	"truledgr/backend/internal/identity/service"
	"truledgr/backend/internal/server/interceptors"
)

// RequireAdmin ensures the caller is authenticated and the effective user is an administrator.
// An admin impersonating a regular user is not an admin here.
func RequireAdmin(ctx context.Context) (*identitydomain.Principal, error) {
	p, ok := interceptors.GetPrincipal(ctx)
	if !ok {
		return nil, service.ErrInvalidOrExpiredToken
	}
	if err := service.RequireAdmin(p.User); err != nil {
		return nil, err
	}
	return p, nil
}

// RequireDirectAdmin is RequireAdmin for operations that must not run under impersonation,
// such as starting or ending impersonation sessions.
func RequireDirectAdmin(ctx context.Context) (*identitydomain.Principal, error) {
	p, _ := interceptors.GetPrincipal(ctx)
	if err := service.RequireDirectAdmin(p); err != nil {
		return nil, err
	}
	return p, nil
}

// RequirePrincipal returns the authenticated principal or ErrInvalidOrExpiredToken.
func RequirePrincipal(ctx context.Context) (*identitydomain.Principal, error) {
	p, ok := interceptors.GetPrincipal(ctx)
	if !ok {
		return nil, service.ErrInvalidOrExpiredToken
	}
	return p, nil
}
