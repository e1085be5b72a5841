package middlewares

import (
	"context"
	"net/http"
	"strings"

	"kpitracker/identity"
	"kpitracker/utils"

	"go.uber.org/zap"
)

// TokenVerifier validates a bearer token and returns the caller's claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*identity.Claims, error)
}

type contextKey string

const ClaimsContextKey contextKey = "claims"

// Authenticate rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func Authenticate(verifier TokenVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.HandleMessageResponse(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			tokenString = strings.TrimSpace(tokenString)
			if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				utils.HandleMessageResponse(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				utils.HandleError(w, r, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *identity.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// ClaimsFromContext returns the verified caller, or nil on unauthenticated routes.
func ClaimsFromContext(ctx context.Context) *identity.Claims {
	if claims, ok := ctx.Value(ClaimsContextKey).(*identity.Claims); ok {
		return claims
	}
	return nil
}

// RequireAdmin rejects authenticated callers without the admin role before
// the request body is read.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			utils.HandleMessageResponse(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		if !claims.IsAdmin() {
			utils.HandleMessageResponse(w, "Admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
