package service

import (
	"context"
	"strings"

	identitydomain "truledgr/backend/internal/identity/domain"
	"truledgr/backend/internal/security"
	userdomain "truledgr/backend/internal/user/domain"
)

// Resolver turns a bearer access token into the request's Principal. Every call checks the
// backing session row, so revocation and expiry take effect on the next request.
type Resolver struct {
	users         UserRepo
	sessions      SessionRepo
	impersonation ImpersonationRepo
	codec         *security.TokenCodec
	options
}

// NewResolver returns a Resolver.
func NewResolver(users UserRepo, sessions SessionRepo, impersonation ImpersonationRepo, codec *security.TokenCodec, opts ...Option) *Resolver {
	return &Resolver{
		users:         users,
		sessions:      sessions,
		impersonation: impersonation,
		codec:         codec,
		options:       buildOptions(opts),
	}
}

// Resolve validates an access token and returns the effective principal. Refresh tokens,
// unknown or ended sessions, and deleted or deactivated users all fail with a
// KindInvalidOrExpiredToken error. Impersonation tokens also require the initiating admin to
// still be an active admin.
func (r *Resolver) Resolve(ctx context.Context, token string) (*identitydomain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	claims, err := r.codec.Decode(token)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	switch c := claims.(type) {
	case security.AccessClaims:
		return r.resolveSession(ctx, c)
	case security.ImpersonationAccessClaims:
		return r.resolveImpersonation(ctx, c)
	default:
		return nil, ErrInvalidOrExpiredToken
	}
}

func (r *Resolver) resolveSession(ctx context.Context, c security.AccessClaims) (*identitydomain.Principal, error) {
	sess, err := r.sessions.GetByToken(ctx, c.SessionToken)
	if err != nil {
		return nil, unavailable(err)
	}
	if sess == nil || sess.UserID != c.UserID {
		return nil, ErrInvalidOrExpiredToken
	}
	now := r.clock()
	if !sess.IsLive(now) {
		markSessionExpired(ctx, r.sessions, sess, now, &r.options)
		return nil, ErrInvalidOrExpiredToken
	}
	u, err := r.activeUser(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	return &identitydomain.Principal{User: u, SessionID: sess.ID, SessionToken: sess.SessionToken}, nil
}

func (r *Resolver) resolveImpersonation(ctx context.Context, c security.ImpersonationAccessClaims) (*identitydomain.Principal, error) {
	imp, err := r.impersonation.GetImpersonationByToken(ctx, c.SessionToken)
	if err != nil {
		return nil, unavailable(err)
	}
	if !matchesImpersonation(imp, c.ImpersonationSessionID, c.AdminUserID, c.UserID) {
		return nil, ErrInvalidOrExpiredToken
	}
	now := r.clock()
	if !imp.IsLive(now) {
		markImpersonationExpired(ctx, r.impersonation, imp, now, &r.options)
		return nil, ErrImpersonationExpired
	}
	if err := requireImpersonator(ctx, r.users, r.impersonation, imp, now, &r.options); err != nil {
		return nil, err
	}
	target, err := r.activeUser(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	return &identitydomain.Principal{
		User:         target,
		SessionID:    imp.ID,
		SessionToken: imp.SessionToken,
		Impersonation: &identitydomain.ImpersonationContext{
			AdminUserID: imp.AdminUserID,
			SessionID:   imp.ID,
			Reason:      imp.Reason,
			ExpiresAt:   imp.ExpiresAt,
		},
	}, nil
}

func (r *Resolver) activeUser(ctx context.Context, id string) (*userdomain.User, error) {
	u, err := r.users.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable(err)
	}
	if u == nil || !u.IsActive {
		return nil, ErrInvalidOrExpiredToken
	}
	return u, nil
}

// RequireAdmin fails with ErrForbidden unless u is an administrator. For an impersonated
// principal pass the effective user: an admin impersonating a regular user is not an admin.
func RequireAdmin(u *userdomain.User) error {
	if u == nil || !u.IsAdmin {
		return ErrForbidden
	}
	return nil
}

// RequireDirectAdmin is RequireAdmin plus a ban on impersonated principals. Starting or
// managing impersonation sessions requires it, so impersonation cannot be nested.
func RequireDirectAdmin(p *identitydomain.Principal) error {
	if p == nil {
		return ErrInvalidOrExpiredToken
	}
	if p.IsImpersonating() {
		return forbidden("not allowed while impersonating")
	}
	return RequireAdmin(p.User)
}
