package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	audithandler "truledgr/backend/internal/audit/handler"
	healthhandler "truledgr/backend/internal/health/handler"
	identityhandler "truledgr/backend/internal/identity/handler"
	"truledgr/backend/internal/server/interceptors"
	"truledgr/backend/internal/server/response"
	sessionhandler "truledgr/backend/internal/session/handler"
)

// Deps holds the handlers and collaborators mounted by NewRouter.
type Deps struct {
	Identity *identityhandler.Handler
	Sessions *sessionhandler.Handler
	// Audit serves the admin audit log listing. If nil, the route is not mounted.
	Audit    *audithandler.Handler
	Health   *healthhandler.Handler
	Resolver interceptors.Resolver
	Logger   *slog.Logger
	// CORSOptions overrides DefaultCORSOptions.
	CORSOptions *cors.Options
}

// DefaultCORSOptions returns the CORS policy for the web and mobile clients.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter builds the HTTP router.
//
// Routes:
//   - GET    /health, /health/ready            → internal/health/handler
//   - POST   /auth/login, /auth/refresh        → internal/identity/handler (public)
//   - DELETE /auth/logout, GET /auth/whoami, GET /auth/me,
//     POST|DELETE|GET /auth/impersonations    → internal/identity/handler
//   - GET|DELETE /auth/sessions[/{id}]        → internal/session/handler
//   - GET    /admin/audit-logs                → internal/audit/handler
func NewRouter(deps Deps) http.Handler {
	corsOpts := DefaultCORSOptions()
	if deps.CORSOptions != nil {
		corsOpts = *deps.CORSOptions
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(interceptors.RequestLog(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOpts))
	r.Use(interceptors.Client)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	if deps.Health != nil {
		r.Get("/health", deps.Health.Live)
		r.Get("/health/ready", deps.Health.Ready)
	}

	authn := interceptors.Authenticate(deps.Resolver)
	r.Route("/auth", func(r chi.Router) {
		deps.Identity.PublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(authn)
			deps.Identity.Routes(r)
			deps.Sessions.Routes(r)
		})
	})
	if deps.Audit != nil {
		r.With(authn).Get("/admin/audit-logs", deps.Audit.List)
	}
	return r
}
