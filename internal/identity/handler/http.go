package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"

	identitydomain "truledgr/backend/internal/identity/domain"
	"truledgr/backend/internal/identity/service"
	"truledgr/backend/internal/platform/rbac"
	"truledgr/backend/internal/server/interceptors"
	"truledgr/backend/internal/server/response"
	sessionhandler "truledgr/backend/internal/session/handler"
	userdomain "truledgr/backend/internal/user/domain"
)

// UserLookup resolves user ids for display fields.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// LinkedAccountLister lists a user's linked OAuth accounts.
type LinkedAccountLister interface {
	ListByUser(ctx context.Context, userID string) ([]*identitydomain.LinkedAccount, error)
}

// Handler serves the /auth endpoints for login, refresh, logout, identity and impersonation.
type Handler struct {
	auth     *service.AuthService
	imp      *service.ImpersonationService
	users    UserLookup
	accounts LinkedAccountLister
	log      *slog.Logger
	now      func() time.Time
}

// NewHandler returns an identity Handler. accounts may be nil; /auth/me then reports no
// linked accounts.
func NewHandler(auth *service.AuthService, imp *service.ImpersonationService, users UserLookup, accounts LinkedAccountLister, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{auth: auth, imp: imp, users: users, accounts: accounts, log: log, now: time.Now}
}

// PublicRoutes mounts the unauthenticated endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
}

// Routes mounts the endpoints that need an authenticated principal.
func (h *Handler) Routes(r chi.Router) {
	r.Delete("/logout", h.Logout)
	r.Get("/whoami", h.WhoAmI)
	r.Get("/me", h.Me)
	r.Post("/impersonations", h.StartImpersonation)
	r.Delete("/impersonations", h.EndImpersonation)
	r.Get("/impersonations", h.ListImpersonations)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	ip, ua := interceptors.Provenance(r.Context())
	pair, err := h.auth.Login(r.Context(), req.Username, req.Password, service.ClientInfo{IP: ip, UserAgent: ua})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, newTokenResponse(pair, h.now()))
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, newTokenResponse(pair, h.now()))
}

// Logout handles DELETE /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.Logout(r.Context(), p.SessionToken); err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, messageResponse{Message: "logged out"})
}

// WhoAmI handles GET /auth/whoami.
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, whoamiResponse{
		UserID:          p.User.ID,
		Username:        p.User.Username,
		Email:           p.User.Email,
		IsAdmin:         p.User.IsAdmin,
		IsImpersonating: p.IsImpersonating(),
		Impersonation:   h.impersonationInfo(r.Context(), p),
	})
}

// Me handles GET /auth/me: the effective user's profile, live sessions and linked accounts.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequirePrincipal(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sessions, err := h.auth.ListSessions(r.Context(), p.User.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var accounts []*identitydomain.LinkedAccount
	if h.accounts != nil {
		if accounts, err = h.accounts.ListByUser(r.Context(), p.User.ID); err != nil {
			h.log.ErrorContext(r.Context(), "list linked accounts failed", "user_id", p.User.ID, "error", err)
			response.FromError(w, r, &service.Error{Kind: service.KindUnavailable, Message: "service temporarily unavailable", Err: err})
			return
		}
	}
	response.JSON(w, r, http.StatusOK, meResponse{
		User: userProfile{
			ID:        p.User.ID,
			Username:  p.User.Username,
			Email:     p.User.Email,
			FullName:  p.User.FullName,
			IsActive:  p.User.IsActive,
			IsAdmin:   p.User.IsAdmin,
			CreatedAt: p.User.CreatedAt,
		},
		Sessions:       sessionhandler.NewSessionSummaries(sessions, p.SessionID),
		LinkedAccounts: newLinkedAccounts(accounts),
		Impersonation:  h.impersonationInfo(r.Context(), p),
	})
}

// StartImpersonation handles POST /auth/impersonations.
func (h *Handler) StartImpersonation(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireDirectAdmin(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req startImpersonationRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.imp.Start(r.Context(), p.User, req.TargetUserID, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	expiresIn := 0
	if d := res.AccessExpiresAt.Sub(h.now()); d > 0 {
		expiresIn = int(d.Round(time.Second) / time.Second)
	}
	response.JSON(w, r, http.StatusOK, impersonationTokenResponse{
		AccessToken:            res.AccessToken,
		RefreshToken:           res.RefreshToken,
		TokenType:              res.TokenType,
		ExpiresIn:              expiresIn,
		TargetUserID:           res.TargetUserID,
		AdminUserID:            res.AdminUserID,
		ImpersonationSessionID: res.ImpersonationSessionID,
		ExpiresAt:              res.ExpiresAt,
	})
}

// EndImpersonation handles DELETE /auth/impersonations.
func (h *Handler) EndImpersonation(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireDirectAdmin(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req endImpersonationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.imp.End(r.Context(), req.ImpersonationSessionID, p.User.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, messageResponse{Message: "impersonation ended"})
}

// ListImpersonations handles GET /auth/impersonations.
func (h *Handler) ListImpersonations(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireDirectAdmin(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.imp.List(r.Context(), p.User.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]impersonationSummary, 0, len(list))
	for _, s := range list {
		out = append(out, newImpersonationSummary(s))
	}
	response.JSON(w, r, http.StatusOK, out)
}

func (h *Handler) impersonationInfo(ctx context.Context, p *identitydomain.Principal) *impersonationInfo {
	if !p.IsImpersonating() {
		return nil
	}
	info := &impersonationInfo{
		AdminUserID: p.Impersonation.AdminUserID,
		SessionID:   p.Impersonation.SessionID,
		Reason:      p.Impersonation.Reason,
		ExpiresAt:   p.Impersonation.ExpiresAt,
	}
	if admin, err := h.users.GetByID(ctx, p.Impersonation.AdminUserID); err != nil {
		h.log.WarnContext(ctx, "lookup impersonating admin failed", "admin_user_id", p.Impersonation.AdminUserID, "error", err)
	} else if admin != nil {
		info.AdminUsername = admin.Username
	}
	return info
}

type validatable interface {
	Validate() error
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	if err := response.Decode(w, r, dst); err != nil {
		if errors.Is(err, response.ErrBodyTooLarge) {
			response.BadRequest(w, r, "request body too large")
			return false
		}
		response.BadRequest(w, r, "malformed JSON body")
		return false
	}
	if err := dst.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			response.BadRequest(w, r, verrs.Error())
			return false
		}
		response.BadRequest(w, r, err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if service.KindOf(err) == service.KindUnavailable || service.KindOf(err) == "" {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	response.FromError(w, r, err)
}
