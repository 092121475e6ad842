package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type rateLimiter interface {
	CheckRateLimit(ctx context.Context, identifier, action string, max int, window time.Duration) error
}

// RateLimit throttles a surface with a fixed window per client IP. The
// limiter fails open on storage errors, so an unavailable counter never locks
// users out.
func RateLimit(limiter rateLimiter, action string, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 || window <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if err := limiter.CheckRateLimit(ctx, clientIP(r), action, limit, window); err != nil {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"action": action,
						"limit":  limit,
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
