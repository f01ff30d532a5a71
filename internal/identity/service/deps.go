package service

import (
	"context"
	"log/slog"
	"time"

	"truledgr/backend/internal/audit"
	sessiondomain "truledgr/backend/internal/session/domain"
	userdomain "truledgr/backend/internal/user/domain"
)

// UserRepo is the minimal user repository needed by the identity services.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// SessionRepo is the minimal ordinary-session repository needed by the identity services.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	GetByToken(ctx context.Context, sessionToken string) (*sessiondomain.Session, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*sessiondomain.Session, error)
	SetStatus(ctx context.Context, id string, status sessiondomain.Status) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string) (int, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// ImpersonationRepo is the minimal impersonation-session repository needed by the identity services.
type ImpersonationRepo interface {
	CreateImpersonation(ctx context.Context, s *sessiondomain.ImpersonationSession) error
	GetImpersonationByID(ctx context.Context, id string) (*sessiondomain.ImpersonationSession, error)
	GetImpersonationByToken(ctx context.Context, sessionToken string) (*sessiondomain.ImpersonationSession, error)
	SetImpersonationStatus(ctx context.Context, id string, status sessiondomain.Status, at time.Time) (bool, error)
	EndImpersonation(ctx context.Context, id, adminUserID string, now time.Time) (bool, error)
	ListImpersonationsByAdmin(ctx context.Context, adminUserID string) ([]*sessiondomain.ImpersonationSummary, error)
}

// LoginLimiter throttles repeated failed logins. Check returns an error wrapping
// ratelimit.ErrRateLimited when the caller must wait, or ratelimit.ErrUnavailable when the
// backing store is down.
type LoginLimiter interface {
	Check(ctx context.Context, username, ip string) error
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username string) error
}

// Metrics counts auth outcomes.
type Metrics interface {
	RecordLogin(ctx context.Context, outcome, reason string)
	RecordRefresh(ctx context.Context, outcome, reason string)
	RecordImpersonation(ctx context.Context, outcome, reason string)
}

// Config holds the token and session lifetimes.
type Config struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	SessionTTL       time.Duration
	ImpersonationTTL time.Duration
}

// DefaultConfig returns the stock lifetimes: 15m access, 7d refresh, 1h session, 2h impersonation.
func DefaultConfig() Config {
	return Config{
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		SessionTTL:       time.Hour,
		ImpersonationTTL: 2 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AccessTTL <= 0 {
		c.AccessTTL = d.AccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = d.RefreshTTL
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.ImpersonationTTL <= 0 {
		c.ImpersonationTTL = d.ImpersonationTTL
	}
	return c
}

// Option configures optional collaborators of the identity services.
type Option func(*options)

type options struct {
	log     *slog.Logger
	audit   audit.AuditLogger
	limiter LoginLimiter
	metrics Metrics
	now     func() time.Time
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithAuditLogger records security events through a.
func WithAuditLogger(a audit.AuditLogger) Option { return func(o *options) { o.audit = a } }

// WithLoginLimiter enables failed-login throttling.
func WithLoginLimiter(l LoginLimiter) Option { return func(o *options) { o.limiter = l } }

// WithMetrics records auth outcome counters.
func WithMetrics(m Metrics) Option { return func(o *options) { o.metrics = m } }

// WithClock overrides the time source used for expiry checks and timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func buildOptions(opts []Option) options {
	o := options{log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func (o *options) logEvent(ctx context.Context, ev audit.Event) {
	if o.audit != nil {
		o.audit.LogEvent(ctx, ev)
	}
}

func (o *options) clock() time.Time {
	return o.now().UTC()
}

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// createRetries bounds session-token regeneration when an insert hits a unique collision.
const createRetries = 3
