package middleware

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/auth"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ClaimsFromContext returns the validated bearer claims, if any.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return c, ok && c != nil
}

func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// OptionalAuth attaches claims when a valid bearer token is present and
// otherwise lets the request through anonymously. Browser websocket clients
// cannot set headers, so the token query parameter is accepted as well.
func OptionalAuth(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				header = r.URL.Query().Get("token")
			}
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.Parse(header)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireStaff rejects requests without a valid staff token.
func RequireStaff(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				var err error
				claims, err = tokens.Parse(r.Header.Get("Authorization"))
				if err != nil {
					utils.WriteError(w, apperr.Unauthorized("Please sign in to continue."))
					return
				}
			}
			if claims.Role != auth.RoleStaff {
				utils.WriteError(w, apperr.Unauthorized("Staff access required."))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
