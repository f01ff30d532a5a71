package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"truledgr/backend/internal/audit/domain"
	auditrepo "truledgr/backend/internal/audit/repository"
	"truledgr/backend/internal/identity/service"
	"truledgr/backend/internal/platform/rbac"
	"truledgr/backend/internal/server/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Handler serves the admin audit log listing.
type Handler struct {
	repo auditrepo.Repository
}

// NewHandler returns an audit Handler.
func NewHandler(repo auditrepo.Repository) *Handler {
	return &Handler{repo: repo}
}

type entry struct {
	ID            string          `json:"id"`
	ActorUserID   string          `json:"actor_user_id,omitempty"`
	SubjectUserID string          `json:"subject_user_id,omitempty"`
	Action        string          `json:"action"`
	Resource      string          `json:"resource,omitempty"`
	ResourceID    string          `json:"resource_id,omitempty"`
	IP            string          `json:"ip"`
	UserAgent     string          `json:"user_agent,omitempty"`
	Metadata      json.RawMessage `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
}

type page struct {
	Entries       []entry `json:"entries"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

// List handles GET /admin/audit-logs?user_id=&page_size=&page_token=. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireAdmin(r.Context()); err != nil {
		response.FromError(w, r, err)
		return
	}
	q := r.URL.Query()
	limit := defaultPageSize
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(w, r, "page_size must be a positive integer")
			return
		}
		limit = min(n, maxPageSize)
	}
	offset := 0
	if v := q.Get("page_token"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, r, "invalid page_token")
			return
		}
		offset = n
	}
	list, err := h.repo.List(r.Context(), q.Get("user_id"), limit+1, offset)
	if err != nil {
		response.FromError(w, r, &service.Error{Kind: service.KindUnavailable, Message: "service temporarily unavailable", Err: err})
		return
	}
	var next string
	if len(list) > limit {
		list = list[:limit]
		next = strconv.Itoa(offset + limit)
	}
	out := page{Entries: make([]entry, 0, len(list)), NextPageToken: next}
	for _, a := range list {
		out.Entries = append(out.Entries, toEntry(a))
	}
	response.JSON(w, r, http.StatusOK, out)
}

func toEntry(a *domain.AuditLog) entry {
	meta := json.RawMessage(a.Metadata)
	if len(meta) == 0 || !json.Valid(meta) {
		meta = json.RawMessage("{}")
	}
	return entry{
		ID:            a.ID,
		ActorUserID:   a.ActorUserID,
		SubjectUserID: a.SubjectUserID,
		Action:        a.Action,
		Resource:      a.Resource,
		ResourceID:    a.ResourceID,
		IP:            a.IP,
		UserAgent:     a.UserAgent,
		Metadata:      meta,
		CreatedAt:     a.CreatedAt,
	}
}
