package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"quiz-attempt-service/internal/domain"
)

const (
	// AccessCookie carries the access token for browser clients.
	AccessCookie = "accessToken"
	// RefreshCookie carries the refresh token.
	RefreshCookie = "refreshToken"
	// queryToken lets websocket clients, which cannot set headers, authenticate.
	queryToken = "access_token"
)

type ctxKey struct{}

// WithIdentity stores the caller identity on ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return id, ok
}

// Authenticate rejects requests without a valid access token and stores the
// caller identity in the request context.
func Authenticate(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				deny(w, http.StatusUnauthorized, "missing access token")
				return
			}
			claims, err := issuer.ParseAccess(token)
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
		})
	}
}

// RequireRoles admits only callers whose role is in the static set.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "missing access token")
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				deny(w, http.StatusForbidden, "you do not have permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(queryToken)
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": string(domain.KindForbidden)})
}
