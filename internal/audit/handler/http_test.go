package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truledgr/backend/internal/audit/domain"
	auditrepo "truledgr/backend/internal/audit/repository"
	"truledgr/backend/internal/db"
	identitydomain "truledgr/backend/internal/identity/domain"
	"truledgr/backend/internal/server/interceptors"
	userdomain "truledgr/backend/internal/user/domain"
)

func seededRepo(t *testing.T, n int) auditrepo.Repository {
	t.Helper()
	ctx := context.Background()
	bdb, err := db.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	require.NoError(t, db.EnsureSchema(ctx, bdb))
	repo := auditrepo.NewBunRepository(bdb)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(ctx, &domain.AuditLog{
			ID:            db.NewID(),
			ActorUserID:   "u1",
			SubjectUserID: "u1",
			Action:        domain.ActionLoginSuccess,
			IP:            "203.0.113.1",
			Metadata:      fmt.Sprintf(`{"n":%d}`, i),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return repo
}

func serve(h *Handler, admin bool, target string) *httptest.ResponseRecorder {
	p := &identitydomain.Principal{User: &userdomain.User{ID: "a1", IsAdmin: admin}}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(interceptors.WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	h.List(rec, req)
	return rec
}

func TestList_Paginates(t *testing.T) {
	h := NewHandler(seededRepo(t, 3))

	rec := serve(h, true, "/admin/audit-logs?page_size=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var body page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 2)
	assert.JSONEq(t, `{"n":2}`, string(body.Entries[0].Metadata))
	assert.Equal(t, "2", body.NextPageToken)

	rec = serve(h, true, "/admin/audit-logs?page_size=2&page_token=2")
	require.Equal(t, http.StatusOK, rec.Code)
	body = page{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Empty(t, body.NextPageToken)
}

func TestList_RequiresAdmin(t *testing.T) {
	rec := serve(NewHandler(seededRepo(t, 1)), false, "/admin/audit-logs")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestList_RejectsBadPaging(t *testing.T) {
	h := NewHandler(seededRepo(t, 1))
	for _, q := range []string{"page_size=0", "page_size=abc", "page_token=-1"} {
		rec := serve(h, true, "/admin/audit-logs?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestToEntry_InvalidMetadataBecomesEmptyObject(t *testing.T) {
	e := toEntry(&domain.AuditLog{ID: "x", Metadata: "not json"})
	assert.Equal(t, "{}", string(e.Metadata))
}
