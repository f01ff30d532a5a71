package interceptors

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	identitydomain "truledgr/backend/internal/identity/domain"
	"truledgr/backend/internal/identity/service"
	userdomain "truledgr/backend/internal/user/domain"
)

type stubResolver struct {
	token string
	p     *identitydomain.Principal
	err   error
}

func (s *stubResolver) Resolve(ctx context.Context, token string) (*identitydomain.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token != s.token {
		return nil, service.ErrInvalidOrExpiredToken
	}
	return s.p, nil
}

func protected(t *testing.T, resolver Resolver) http.Handler {
	t.Helper()
	return Authenticate(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserID(r.Context())
		if !ok {
			t.Error("principal missing in handler context")
		}
		_, _ = w.Write([]byte(id))
	}))
}

func TestAuthenticate_ValidToken(t *testing.T) {
	resolver := &stubResolver{token: "good", p: &identitydomain.Principal{User: &userdomain.User{ID: "user-1"}}}
	for _, header := range []string{"Bearer good", "bearer good", "BEARER   good  "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		protected(t, resolver).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, header)
		assert.Equal(t, "user-1", rec.Body.String())
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	resolver := &stubResolver{token: "good", p: &identitydomain.Principal{User: &userdomain.User{ID: "user-1"}}}
	for _, header := range []string{"", "Bearer", "Basic Zm9vOmJhcg==", "Bearer bad", "Token good"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected(t, resolver).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Contains(t, rec.Body.String(), `"code":"invalid_or_expired_token"`)
	}
}

func TestAuthenticate_StoreOutageIs503(t *testing.T) {
	resolver := &stubResolver{err: &service.Error{Kind: service.KindUnavailable, Message: "service temporarily unavailable"}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	protected(t, resolver).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
		{"nothing", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestClient_StoresProvenance(t *testing.T) {
	var gotIP, gotUA string
	h := Client(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP, gotUA = Provenance(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:443"
	req.Header.Set("User-Agent", "truledgr-ios/1.0")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "192.0.2.7", gotIP)
	assert.Equal(t, "truledgr-ios/1.0", gotUA)
}

func TestRequestLog_NeverLogsAuthorization(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"path":"/auth/login"`)
	assert.Contains(t, out, `"status":418`)
	assert.False(t, strings.Contains(out, "secret-token"))
}
