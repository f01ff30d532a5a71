package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"truledgr/backend/internal/audit"
	auditdomain "truledgr/backend/internal/audit/domain"
	"truledgr/backend/internal/db"
	"truledgr/backend/internal/ratelimit"
	"truledgr/backend/internal/security"
	sessiondomain "truledgr/backend/internal/session/domain"
	userdomain "truledgr/backend/internal/user/domain"
)

// TokenTypeBearer is the token_type reported with every token pair.
const TokenTypeBearer = "bearer"

// ClientInfo is the request provenance stored on new sessions and used for throttling.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// TokenPair is the result of Login and Refresh.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	TokenType       string
	AccessExpiresAt time.Time
	UserID          string
	SessionID       string
}

// ExpiresIn returns the access token lifetime in whole seconds from now.
func (p *TokenPair) ExpiresIn(now time.Time) int {
	if d := p.AccessExpiresAt.Sub(now); d > 0 {
		return int(d.Round(time.Second) / time.Second)
	}
	return 0
}

// AuthService implements password login, token refresh, logout and session management.
type AuthService struct {
	users         UserRepo
	sessions      SessionRepo
	impersonation ImpersonationRepo
	hasher        *security.Hasher
	codec         *security.TokenCodec
	cfg           Config
	options
}

// NewAuthService returns an AuthService. Zero TTLs in cfg fall back to DefaultConfig.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	impersonation ImpersonationRepo,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	cfg Config,
	opts ...Option,
) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		impersonation: impersonation,
		hasher:        hasher,
		codec:         codec,
		cfg:           cfg.withDefaults(),
		options:       buildOptions(opts),
	}
}

// Login verifies username and password and opens a new session. Unknown usernames and wrong
// passwords fail identically with ErrInvalidCredentials; a correct password for a deactivated
// account yields ErrInactiveAccount.
func (s *AuthService) Login(ctx context.Context, username, password string, client ClientInfo) (*TokenPair, error) {
	username = strings.TrimSpace(username)
	if err := s.checkLimiter(ctx, username, client.IP); err != nil {
		s.recordLogin(ctx, outcomeFailure, string(KindRateLimited))
		return nil, err
	}
	var u *userdomain.User
	if username != "" {
		var err error
		if u, err = s.users.GetByUsername(ctx, username); err != nil {
			s.recordLogin(ctx, outcomeFailure, string(KindUnavailable))
			return nil, unavailable(err)
		}
	}
	if u == nil {
		s.hasher.VerifyMiss(password)
		s.loginFailed(ctx, username, "", client.IP)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.loginFailed(ctx, username, u.ID, client.IP)
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		s.logEvent(ctx, audit.Event{
			SubjectUserID: u.ID,
			Action:        auditdomain.ActionLoginFailure,
			Metadata:      map[string]any{"username": username, "reason": string(KindInactiveAccount)},
		})
		s.recordLogin(ctx, outcomeFailure, string(KindInactiveAccount))
		return nil, ErrInactiveAccount
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.log.WarnContext(ctx, "login limiter reset failed", "username", username, "error", err)
		}
	}

	now := s.clock()
	sess, refreshToken, err := s.openSession(ctx, u.ID, client, now)
	if err != nil {
		s.recordLogin(ctx, outcomeFailure, string(KindOf(err)))
		return nil, err
	}
	pair, err := s.issuePair(u.ID, sess, refreshToken)
	if err != nil {
		s.recordLogin(ctx, outcomeFailure, string(KindUnavailable))
		return nil, err
	}
	s.logEvent(ctx, audit.Event{
		ActorUserID:   u.ID,
		SubjectUserID: u.ID,
		Action:        auditdomain.ActionLoginSuccess,
		Resource:      auditdomain.ResourceSession,
		ResourceID:    sess.ID,
	})
	s.recordLogin(ctx, outcomeSuccess, "")
	s.log.InfoContext(ctx, "login succeeded", "user_id", u.ID, "session_id", sess.ID)
	return pair, nil
}

// openSession persists a new Active session, regenerating tokens on a unique collision.
func (s *AuthService) openSession(ctx context.Context, userID string, client ClientInfo, now time.Time) (*sessiondomain.Session, string, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		sessionToken, err := security.NewOpaqueToken()
		if err != nil {
			return nil, "", unavailable(err)
		}
		refreshToken, err := security.NewOpaqueToken()
		if err != nil {
			return nil, "", unavailable(err)
		}
		sess := &sessiondomain.Session{
			ID:               db.NewID(),
			UserID:           userID,
			SessionToken:     sessionToken,
			RefreshTokenHash: security.HashRefreshToken(refreshToken),
			Status:           sessiondomain.StatusActive,
			ExpiresAt:        now.Add(s.cfg.SessionTTL),
			LastActivity:     now,
			IPAddress:        client.IP,
			UserAgent:        client.UserAgent,
			CreatedAt:        now,
		}
		err = s.sessions.Create(ctx, sess)
		if err == nil {
			return sess, refreshToken, nil
		}
		if !errors.Is(err, sessiondomain.ErrConflict) {
			return nil, "", unavailable(err)
		}
		s.log.WarnContext(ctx, "session token collision, regenerating", "attempt", attempt+1)
	}
	return nil, "", ErrConflict
}

func (s *AuthService) issuePair(userID string, sess *sessiondomain.Session, refreshToken string) (*TokenPair, error) {
	info := security.TokenInfo{UserID: userID, SessionToken: sess.SessionToken}
	access, accessExp, err := s.codec.Issue(security.AccessClaims{TokenInfo: info}, s.cfg.AccessTTL)
	if err != nil {
		return nil, unavailable(err)
	}
	info.ID = refreshToken
	refresh, _, err := s.codec.Issue(security.RefreshClaims{TokenInfo: info}, s.cfg.RefreshTTL)
	if err != nil {
		return nil, unavailable(err)
	}
	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		TokenType:       TokenTypeBearer,
		AccessExpiresAt: accessExp,
		UserID:          userID,
		SessionID:       sess.ID,
	}, nil
}

func (s *AuthService) checkLimiter(ctx context.Context, username, ip string) error {
	if s.limiter == nil || username == "" {
		return nil
	}
	err := s.limiter.Check(ctx, username, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrRateLimited):
		return ErrRateLimited
	default:
		// The limiter fails open: an outage must not lock every user out.
		s.log.WarnContext(ctx, "login limiter unavailable", "error", err)
		return nil
	}
}

func (s *AuthService) loginFailed(ctx context.Context, username, userID, ip string) {
	if s.limiter != nil && username != "" {
		if err := s.limiter.RecordFailure(ctx, username, ip); err != nil {
			s.log.WarnContext(ctx, "login limiter record failed", "error", err)
		}
	}
	s.logEvent(ctx, audit.Event{
		SubjectUserID: userID,
		Action:        auditdomain.ActionLoginFailure,
		Metadata:      map[string]any{"username": username, "reason": string(KindInvalidCredentials)},
	})
	s.recordLogin(ctx, outcomeFailure, string(KindInvalidCredentials))
}

// Refresh exchanges a refresh token for a new access token. The refresh token is returned
// unchanged. Access tokens are rejected, as is any token whose session is no longer live.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		s.recordRefresh(ctx, outcomeFailure, "decode")
		return nil, ErrInvalidOrExpiredToken
	}
	var pair *TokenPair
	switch c := claims.(type) {
	case security.RefreshClaims:
		pair, err = s.refreshSession(ctx, c)
	case security.ImpersonationRefreshClaims:
		pair, err = s.refreshImpersonation(ctx, c)
	default:
		err = ErrInvalidOrExpiredToken
	}
	if err != nil {
		s.recordRefresh(ctx, outcomeFailure, string(KindOf(err)))
		return nil, err
	}
	pair.RefreshToken = refreshToken
	s.recordRefresh(ctx, outcomeSuccess, "")
	return pair, nil
}

func (s *AuthService) refreshSession(ctx context.Context, c security.RefreshClaims) (*TokenPair, error) {
	sess, err := s.sessions.GetByToken(ctx, c.SessionToken)
	if err != nil {
		return nil, unavailable(err)
	}
	if sess == nil || sess.UserID != c.UserID {
		return nil, ErrInvalidOrExpiredToken
	}
	now := s.clock()
	if !sess.IsLive(now) {
		markSessionExpired(ctx, s.sessions, sess, now, &s.options)
		return nil, ErrInvalidOrExpiredToken
	}
	if !security.RefreshTokenHashEqual(c.ID, sess.RefreshTokenHash) {
		return nil, ErrInvalidOrExpiredToken
	}
	u, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, unavailable(err)
	}
	if u == nil || !u.IsActive {
		return nil, ErrInvalidOrExpiredToken
	}
	if err := s.sessions.Touch(ctx, sess.ID, now); err != nil {
		return nil, unavailable(err)
	}
	access, exp, err := s.codec.Issue(security.AccessClaims{TokenInfo: security.TokenInfo{UserID: u.ID, SessionToken: sess.SessionToken}}, s.cfg.AccessTTL)
	if err != nil {
		return nil, unavailable(err)
	}
	return &TokenPair{AccessToken: access, TokenType: TokenTypeBearer, AccessExpiresAt: exp, UserID: u.ID, SessionID: sess.ID}, nil
}

func (s *AuthService) refreshImpersonation(ctx context.Context, c security.ImpersonationRefreshClaims) (*TokenPair, error) {
	imp, err := s.impersonation.GetImpersonationByToken(ctx, c.SessionToken)
	if err != nil {
		return nil, unavailable(err)
	}
	if !matchesImpersonation(imp, c.ImpersonationSessionID, c.AdminUserID, c.UserID) {
		return nil, ErrInvalidOrExpiredToken
	}
	now := s.clock()
	if !imp.IsLive(now) {
		markImpersonationExpired(ctx, s.impersonation, imp, now, &s.options)
		return nil, ErrImpersonationExpired
	}
	if err := requireImpersonator(ctx, s.users, s.impersonation, imp, now, &s.options); err != nil {
		return nil, err
	}
	target, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, unavailable(err)
	}
	if target == nil || !target.IsActive {
		return nil, ErrInvalidOrExpiredToken
	}
	claims := security.ImpersonationAccessClaims{
		TokenInfo:              security.TokenInfo{UserID: target.ID, SessionToken: imp.SessionToken},
		AdminUserID:            imp.AdminUserID,
		ImpersonationSessionID: imp.ID,
	}
	access, exp, err := s.codec.Issue(claims, minDuration(s.cfg.AccessTTL, imp.ExpiresAt.Sub(now)))
	if err != nil {
		return nil, unavailable(err)
	}
	return &TokenPair{AccessToken: access, TokenType: TokenTypeBearer, AccessExpiresAt: exp, UserID: target.ID, SessionID: imp.ID}, nil
}

// Logout ends the session bound to sessionToken: the ordinary session if there is one,
// otherwise the impersonation session. Ending an already-ended or unknown session is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	sess, err := s.sessions.GetByToken(ctx, sessionToken)
	if err != nil {
		return unavailable(err)
	}
	if sess != nil {
		changed, err := s.sessions.SetStatus(ctx, sess.ID, sessiondomain.StatusRevoked)
		if err != nil {
			return unavailable(err)
		}
		if changed {
			s.logEvent(ctx, audit.Event{
				ActorUserID:   sess.UserID,
				SubjectUserID: sess.UserID,
				Action:        auditdomain.ActionLogout,
				Resource:      auditdomain.ResourceSession,
				ResourceID:    sess.ID,
			})
		}
		return nil
	}
	imp, err := s.impersonation.GetImpersonationByToken(ctx, sessionToken)
	if err != nil {
		return unavailable(err)
	}
	if imp == nil {
		return nil
	}
	changed, err := s.impersonation.SetImpersonationStatus(ctx, imp.ID, sessiondomain.StatusRevoked, s.clock())
	if err != nil {
		return unavailable(err)
	}
	if changed {
		s.logEvent(ctx, audit.Event{
			ActorUserID:   imp.AdminUserID,
			SubjectUserID: imp.TargetUserID,
			Action:        auditdomain.ActionLogout,
			Resource:      auditdomain.ResourceImpersonationSession,
			ResourceID:    imp.ID,
		})
	}
	return nil
}

// ListSessions returns the user's live sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	list, err := s.sessions.ListActiveByUser(ctx, userID, s.clock())
	if err != nil {
		return nil, unavailable(err)
	}
	return list, nil
}

// Revoke ends one of userID's sessions. A session owned by someone else is reported as
// ErrSessionNotFound so its existence is not revealed. Revoking an already-ended session
// succeeds.
func (s *AuthService) Revoke(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return unavailable(err)
	}
	if sess == nil || sess.UserID != userID {
		return ErrSessionNotFound
	}
	changed, err := s.sessions.SetStatus(ctx, sess.ID, sessiondomain.StatusRevoked)
	if err != nil {
		return unavailable(err)
	}
	if changed {
		s.logEvent(ctx, audit.Event{
			ActorUserID:   userID,
			SubjectUserID: userID,
			Action:        auditdomain.ActionSessionRevoke,
			Resource:      auditdomain.ResourceSession,
			ResourceID:    sess.ID,
		})
	}
	return nil
}

// RevokeAll ends every active session of userID and returns how many changed.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.RevokeAllByUser(ctx, userID)
	if err != nil {
		return 0, unavailable(err)
	}
	s.logEvent(ctx, audit.Event{
		ActorUserID:   userID,
		SubjectUserID: userID,
		Action:        auditdomain.ActionSessionsRevokeAll,
		Resource:      auditdomain.ResourceSession,
		Metadata:      map[string]any{"revoked": n},
	})
	return n, nil
}

func (s *AuthService) recordLogin(ctx context.Context, outcome, reason string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(ctx, outcome, reason)
	}
}

func (s *AuthService) recordRefresh(ctx context.Context, outcome, reason string) {
	if s.metrics != nil {
		s.metrics.RecordRefresh(ctx, outcome, reason)
	}
}

// markSessionExpired records lazily detected expiry. Failures are logged; the caller's
// answer is already decided.
func markSessionExpired(ctx context.Context, repo SessionRepo, sess *sessiondomain.Session, now time.Time, o *options) {
	if sess.Status != sessiondomain.StatusActive || now.Before(sess.ExpiresAt) {
		return
	}
	if _, err := repo.SetStatus(ctx, sess.ID, sessiondomain.StatusExpired); err != nil {
		o.log.WarnContext(ctx, "mark session expired failed", "session_id", sess.ID, "error", err)
	}
}

func markImpersonationExpired(ctx context.Context, repo ImpersonationRepo, imp *sessiondomain.ImpersonationSession, now time.Time, o *options) {
	if imp.Status != sessiondomain.StatusActive || now.Before(imp.ExpiresAt) {
		return
	}
	if _, err := repo.SetImpersonationStatus(ctx, imp.ID, sessiondomain.StatusExpired, now); err != nil {
		o.log.WarnContext(ctx, "mark impersonation expired failed", "impersonation_session_id", imp.ID, "error", err)
	}
}

// requireImpersonator fails with ErrImpersonationExpired, and revokes imp, once the admin who
// started it is deleted, deactivated or no longer an admin.
func requireImpersonator(ctx context.Context, users UserRepo, repo ImpersonationRepo, imp *sessiondomain.ImpersonationSession, now time.Time, o *options) error {
	admin, err := users.GetByID(ctx, imp.AdminUserID)
	if err != nil {
		return unavailable(err)
	}
	if admin != nil && admin.IsActive && admin.IsAdmin {
		return nil
	}
	changed, err := repo.SetImpersonationStatus(ctx, imp.ID, sessiondomain.StatusRevoked, now)
	if err != nil {
		o.log.WarnContext(ctx, "revoke orphaned impersonation failed", "impersonation_session_id", imp.ID, "error", err)
	}
	if changed {
		o.logEvent(ctx, audit.Event{
			ActorUserID:   imp.AdminUserID,
			SubjectUserID: imp.TargetUserID,
			Action:        auditdomain.ActionImpersonationEnd,
			Resource:      auditdomain.ResourceImpersonationSession,
			ResourceID:    imp.ID,
			Metadata:      map[string]any{"reason": "admin_privileges_lost"},
		})
	}
	return ErrImpersonationExpired
}

func matchesImpersonation(imp *sessiondomain.ImpersonationSession, id, adminID, targetID string) bool {
	return imp != nil && imp.ID == id && imp.AdminUserID == adminID && imp.TargetUserID == targetID
}

func minDuration(a, b time.Duration) time.Duration {
	if b < a {
		return b
	}
	return a
}
