package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Middleware returns an HTTP middleware that verifies bearer tokens and adds
// the principal to the request context.
//
// A request without a token passes through anonymously; handlers that need a
// principal call RequirePermission. A request with an invalid token is always
// rejected.
func (v *TokenVerifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := v.Verify(tokenString)
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to verify JWT")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
