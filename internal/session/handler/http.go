package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"truledgr/backend/internal/platform/rbac"
	"truledgr/backend/internal/server/response"
	"truledgr/backend/internal/session/domain"
)

// SessionManager is the subset of the auth service the session endpoints use.
type SessionManager interface {
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	Revoke(ctx context.Context, userID, sessionID string) error
	RevokeAll(ctx context.Context, userID string) (int, error)
}

// Handler serves the caller's own session list and revocation endpoints.
type Handler struct {
	sessions SessionManager
}

// NewHandler returns a session Handler.
func NewHandler(sessions SessionManager) *Handler {
	return &Handler{sessions: sessions}
}

// Routes mounts the handler on r. r must already require authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/sessions", h.List)
	r.Delete("/sessions", h.RevokeAll)
	r.Delete("/sessions/{id}", h.Revoke)
}

// SessionSummary is the public view of a session row. Tokens and hashes are never exposed.
type SessionSummary struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IsCurrent    bool      `json:"is_current"`
}

// NewSessionSummaries maps sessions for output, flagging currentID.
func NewSessionSummaries(list []*domain.Session, currentID string) []SessionSummary {
	out := make([]SessionSummary, 0, len(list))
	for _, s := range list {
		out = append(out, SessionSummary{
			ID:           s.ID,
			Status:       string(s.Status),
			CreatedAt:    s.CreatedAt,
			ExpiresAt:    s.ExpiresAt,
			LastActivity: s.LastActivity,
			IP:           s.IPAddress,
			UserAgent:    s.UserAgent,
			IsCurrent:    s.ID == currentID,
		})
	}
	return out
}

// List handles GET /auth/sessions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	list, err := h.sessions.ListSessions(r.Context(), p.User.ID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, NewSessionSummaries(list, p.SessionID))
}

// Revoke handles DELETE /auth/sessions/{id}.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.sessions.Revoke(r.Context(), p.User.ID, id); err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"message": "session revoked", "session_id": id})
}

// RevokeAll handles DELETE /auth/sessions.
func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	n, err := h.sessions.RevokeAll(r.Context(), p.User.ID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"message": "all sessions revoked", "revoked": n})
}
