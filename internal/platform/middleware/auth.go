package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "subvault/pkg/domain"
)

// JWTValidator defines the interface for validating caller identity tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the identity validator.
// Subject is the opaque principal the harness authenticated.
type JWTClaims struct {
	Subject string
}

// Context keys for storing authenticated caller information
type contextKeyPrincipal struct{}

// ContextKeyPrincipal is exported for use in handlers.
var ContextKeyPrincipal = contextKeyPrincipal{}

// GetPrincipal retrieves the authenticated caller identity from the context.
// Returns the empty principal when no identity was attached.
func GetPrincipal(ctx context.Context) id.Principal {
	principal, ok := ctx.Value(ContextKeyPrincipal).(id.Principal)
	if !ok {
		return ""
	}
	return principal
}

// WithPrincipal attaches a caller identity to the context. Used by tests and
// by RequireAuth.
func WithPrincipal(ctx context.Context, principal id.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, principal)
}

// RequireAuth validates the Bearer identity token and stores the principal in
// the request context. Requests without a valid token are rejected with 401.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					writeUnauthorized(w, "Invalid or expired token")
					return
				}

				ctx := WithPrincipal(r.Context(), id.Principal(claims.Subject))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", GetRequestID(ctx),
			)
			writeUnauthorized(w, "Missing or invalid Authorization header")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
