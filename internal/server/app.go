package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/uptrace/bun"

	"truledgr/backend/internal/audit"
	audithandler "truledgr/backend/internal/audit/handler"
	auditrepo "truledgr/backend/internal/audit/repository"
	healthhandler "truledgr/backend/internal/health/handler"
	identityhandler "truledgr/backend/internal/identity/handler"
	identityrepo "truledgr/backend/internal/identity/repository"
	"truledgr/backend/internal/identity/service"
	"truledgr/backend/internal/ratelimit"
	"truledgr/backend/internal/security"
	"truledgr/backend/internal/server/interceptors"
	sessionhandler "truledgr/backend/internal/session/handler"
	sessionrepo "truledgr/backend/internal/session/repository"
	"truledgr/backend/internal/telemetry"
	userrepo "truledgr/backend/internal/user/repository"
)

// Components are the process-level collaborators the HTTP application is assembled from.
type Components struct {
	DB     *bun.DB
	Hasher *security.Hasher
	Codec  *security.TokenCodec
	TTLs   service.Config
	// Limiter enables login throttling and a "redis" readiness check when set.
	Limiter *ratelimit.LoginLimiter
	// Metrics records auth counters when set.
	Metrics service.Metrics
	// Emitter mirrors audit events to telemetry when set.
	Emitter     telemetry.EventEmitter
	Logger      *slog.Logger
	CORSOptions *cors.Options
	// Now overrides the clock; tests only.
	Now func() time.Time
}

// App is the assembled HTTP application.
type App struct {
	Handler       http.Handler
	Auth          *service.AuthService
	Impersonation *service.ImpersonationService
	Resolver      *service.Resolver
}

// NewApp wires repositories, services and handlers over c.DB and returns the router.
func NewApp(c Components) *App {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	users := userrepo.NewBunRepository(c.DB)
	sessions := sessionrepo.NewBunRepository(c.DB)
	audits := auditrepo.NewBunRepository(c.DB)
	accounts := identityrepo.NewBunRepository(c.DB)

	auditLogger := audit.NewLogger(audits, interceptors.Provenance, c.Emitter, log)
	opts := []service.Option{service.WithLogger(log), service.WithAuditLogger(auditLogger)}
	checks := map[string]healthhandler.Checker{}
	if c.Limiter != nil {
		opts = append(opts, service.WithLoginLimiter(c.Limiter))
		checks["redis"] = c.Limiter
	}
	if c.Metrics != nil {
		opts = append(opts, service.WithMetrics(c.Metrics))
	}
	if c.Now != nil {
		opts = append(opts, service.WithClock(c.Now))
	}

	authSvc := service.NewAuthService(users, sessions, sessions, c.Hasher, c.Codec, c.TTLs, opts...)
	impSvc := service.NewImpersonationService(users, sessions, c.Codec, c.TTLs, opts...)
	resolver := service.NewResolver(users, sessions, sessions, c.Codec, opts...)

	handler := NewRouter(Deps{
		Identity:    identityhandler.NewHandler(authSvc, impSvc, users, accounts, log),
		Sessions:    sessionhandler.NewHandler(authSvc),
		Audit:       audithandler.NewHandler(audits),
		Health:      healthhandler.NewHandler(c.DB, checks, log),
		Resolver:    resolver,
		Logger:      log,
		CORSOptions: c.CORSOptions,
	})
	return &App{Handler: handler, Auth: authSvc, Impersonation: impSvc, Resolver: resolver}
}
