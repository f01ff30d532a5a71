package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truledgr/backend/internal/identity/service"
)

type body struct {
	Success bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) body {
	t.Helper()
	var b body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func TestJSON_WritesPayloadAtTopLevel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()

	JSON(rec, req, http.StatusOK, map[string]string{"access_token": "abc", "token_type": "bearer"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"access_token":"abc","token_type":"bearer"}`, rec.Body.String())
}

func TestError_WritesErrorEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-7")
	rec := httptest.NewRecorder()

	BadRequest(rec, req, "username is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "req-7", rec.Header().Get("X-Request-Id"))
	b := decodeBody(t, rec)
	assert.False(t, b.Success)
	require.NotNil(t, b.Error)
	assert.Equal(t, "invalid_argument", b.Error.Code)
	assert.Equal(t, "username is required", b.Error.Message)
	assert.Equal(t, "req-7", b.Meta.RequestID)
}

func TestFromError_MapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{service.ErrInactiveAccount, http.StatusBadRequest, "inactive_account"},
		{service.ErrInvalidOrExpiredToken, http.StatusUnauthorized, "invalid_or_expired_token"},
		{service.ErrImpersonationExpired, http.StatusUnauthorized, "invalid_or_expired_token"},
		{service.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{service.ErrSelfImpersonation, http.StatusBadRequest, "self_impersonation"},
		{service.ErrTargetNotFound, http.StatusNotFound, "target_not_found"},
		{service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{service.ErrConflict, http.StatusConflict, "conflict"},
		{service.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{fmt.Errorf("wrapped: %w", service.ErrSessionNotFound), http.StatusNotFound, "session_not_found"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			b := decodeBody(t, rec)
			assert.False(t, b.Success)
			require.NotNil(t, b.Error)
			assert.Equal(t, tt.code, b.Error.Code)
			assert.NotContains(t, b.Error.Message, "pq:")
		})
	}
}

func TestStatusFor_Unavailable(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(service.KindUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(service.Kind("mystery")))
}

func TestDecode(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"alice"}`))
	require.NoError(t, Decode(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "alice", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	assert.Error(t, Decode(httptest.NewRecorder(), req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", MaxBodyBytes)+`"}`))
	assert.ErrorIs(t, Decode(httptest.NewRecorder(), req, &dst), ErrBodyTooLarge)

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	assert.NoError(t, Decode(httptest.NewRecorder(), req, &dst))
}
