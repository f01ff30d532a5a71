package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"truledgr/backend/internal/server/response"
)

// readyTimeout bounds each dependency check of the readiness endpoint.
const readyTimeout = 2 * time.Second

// Pinger is used for readiness checks (e.g. *bun.DB or *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker is an optional named dependency of the readiness endpoint, such as the login limiter's Redis.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	db     Pinger
	checks map[string]Checker
	log    *slog.Logger
}

// NewHandler returns a health Handler. db may be nil; then readiness skips the DB ping.
func NewHandler(db Pinger, checks map[string]Checker, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{db: db, checks: checks, log: log}
}

type status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live handles GET /health. It never touches dependencies.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, status{Status: "ok"})
}

// Ready handles GET /health/ready: 200 when every dependency answers, 503 otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	out := status{Status: "ok", Checks: map[string]string{}}
	if h.db != nil {
		out.Checks["database"] = h.run(r.Context(), "database", h.db.PingContext)
	}
	for name, c := range h.checks {
		out.Checks[name] = h.run(r.Context(), name, c.HealthCheck)
	}
	code := http.StatusOK
	for _, v := range out.Checks {
		if v != "ok" {
			out.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	response.JSON(w, r, code, out)
}

func (h *Handler) run(ctx context.Context, name string, check func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := check(ctx); err != nil {
		h.log.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
		return "unavailable"
	}
	return "ok"
}
