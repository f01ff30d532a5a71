package interceptors

import (
	"context"
	"net/http"
	"strings"

	identitydomain "truledgr/backend/internal/identity/domain"
	"truledgr/backend/internal/identity/service"
	"truledgr/backend/internal/server/response"
)

const bearerPrefix = "bearer "

// Resolver turns a bearer token into a principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*identitydomain.Principal, error)
}

// Authenticate returns middleware that resolves the Bearer access token and stores the
// principal in the request context. Requests without a usable token get a 401 envelope.
func Authenticate(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				response.Error(w, r, http.StatusUnauthorized, string(service.KindInvalidOrExpiredToken), "missing or invalid authorization")
				return
			}
			p, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				response.FromError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// ExtractBearer returns the Bearer token from the Authorization header, or "" if missing or
// malformed. The scheme is matched case-insensitively.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
