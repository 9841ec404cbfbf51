// Package middleware holds HTTP middleware shared by the router: client IP
// extraction, per-traffic-class rate limiting and security headers.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"diet-cookbook/internal/handler/http/requestid"
	"diet-cookbook/internal/handler/http/respond"
	"diet-cookbook/pkg/ratelimit"
)

// RateLimit returns middleware that admits requests through limiter, keyed by client IP.
//
// Admitted responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Refused requests get 429 with Retry-After. A limiter store
// failure refuses the request without rate limit headers.
func RateLimit(limiter *ratelimit.Limiter, extractor IPExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(extractor, r)

			decision, err := limiter.Check(r.Context(), ip)
			if err != nil {
				slog.Error("rate limit check failed, refusing request",
					slog.String("limiter", limiter.Name()),
					slog.String("request_id", requestid.FromContext(r.Context())),
					slog.Any("error", err))
				respond.Error(w, http.StatusTooManyRequests, "rate_limited", "rate limit unavailable, try again later")
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))

			if !decision.Allowed {
				h.Set("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds(), 10))
				slog.Warn("rate limit exceeded",
					slog.String("limiter", limiter.Name()),
					slog.String("key", ip),
					slog.String("request_id", requestid.FromContext(r.Context())),
					slog.String("path", r.URL.Path),
					slog.Duration("retry_after", decision.RetryAfter))
				respond.Error(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
