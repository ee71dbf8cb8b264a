package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sbms/trading/internal/infrastructure/auth"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// ClaimsContextKey is the context key for the verified token claims
	ClaimsContextKey ContextKey = "claims"
	// BearerTokenContextKey is the context key for the raw bearer token.
	// The engine stores it in outbox payloads so the dispatcher can
	// forward the caller's identity to downstream services.
	BearerTokenContextKey ContextKey = "bearerToken"
)

// Auth creates an authentication middleware that verifies the bearer
// token and scopes the request to the business in its claims.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]

			claims, err := jwtManager.Verify(tokenString)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, BearerTokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BusinessIDFromContext extracts the authenticated business id from context
func BusinessIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	if !ok {
		return uuid.Nil, false
	}
	return claims.BusinessID, true
}

// BearerTokenFromContext extracts the raw bearer token from context
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(BearerTokenContextKey).(string)
	return token
}
