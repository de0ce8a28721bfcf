package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/starblog/internal/apperror"
)

// Verifier checks a session credential. *TokenService implements it; the
// HTTP middleware and the websocket gate both depend on this interface.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

var _ Verifier = (*TokenService)(nil)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the claims value.
type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <token>", verifies it, and stores the
// claims in the request context. Missing, expired and invalid tokens all get
// the same 401 body; only the log line says which one it was.
func RequireAuth(tokens Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.Verify(BearerToken(r))
			if err != nil {
				logger.Debug("request rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", RejectReason(err)),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"authentication required"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid bearer token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := BearerToken(r); token != "" {
				if claims, err := tokens.Verify(token); err == nil {
					r = r.WithContext(ContextWithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithClaims returns a copy of ctx carrying verified claims.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the verified claims of the current request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext returns the authenticated user's ID.
// Returns (0, false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return c.UserID, true
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// Returns "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RejectReason names a verification failure for logs.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrTokenMissing):
		return "no token"
	case errors.Is(err, apperror.ErrTokenExpired):
		return "expired token"
	default:
		return "invalid token"
	}
}
