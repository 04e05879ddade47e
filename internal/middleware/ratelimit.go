// File: internal/middleware/ratelimit.go
package middleware

import (
	"fmt"
	"net/http"

	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/ratelimit"
	"github.com/iyunix/go-roomchat/internal/services"
)

// ConnectLimitMiddleware gates new connections per client IP so a
// single host cannot churn through websocket handshakes.
func ConnectLimitMiddleware(limiter *ratelimit.Limiter, logger services.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ratelimit.GetClientIP(r)
			tier := domain.TierAnonymous
			if identity, ok := IdentityFrom(r.Context()); ok {
				tier = identity.Tier
			}

			res, err := limiter.TryConsume(r.Context(), clientIP, "gateway", ratelimit.ActionConnect, tier)
			if err != nil {
				logger.Error("connect limiter unavailable", "ip", clientIP, "error", err)
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", res.ResetAt.Unix()))

			if !res.Allowed {
				logger.Warn("connection rate limited", "ip", clientIP, "window", string(res.Window))
				http.Error(w, "too many connections, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
