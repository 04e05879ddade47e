// File: internal/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/iyunix/go-roomchat/internal/auth"
	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/services"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom returns the identity resolved for the request, if any.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

// NewIdentityMiddleware resolves a participant identity from a signed
// token. Websocket clients cannot set headers, so the token is also
// accepted as a query parameter. Requests without a valid token
// proceed as anonymous with the name taken from the "name" parameter.
func NewIdentityMiddleware(secretKey []byte, logger services.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := domain.Identity{Tier: domain.TierAnonymous}

			if token := bearerToken(r); token != "" {
				name, tier, err := auth.ValidateToken(token, secretKey)
				if err != nil {
					logger.Warn("rejected invalid token", "remote", r.RemoteAddr, "error", err)
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				identity.Name = name
				identity.Tier = tier
			} else if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
				identity.Name = name
			}

			if identity.Name == "" {
				http.Error(w, "identity required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
