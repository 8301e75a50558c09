package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/shootlink/shortener/pkg/response"
	"github.com/shootlink/shortener/pkg/seclog"
)

const userAgentKeyLength = 50

// ClientKey derives the admission identifier for a request: the
// best-available client address combined with a truncated user agent,
// so distinct clients behind one address rarely share a window.
func ClientKey(r *http.Request) string {
	userAgent := r.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}
	if len(userAgent) > userAgentKeyLength {
		userAgent = userAgent[:userAgentKeyLength]
	}

	return seclog.ClientIP(r) + ":" + userAgent
}

// Admitter is the admission-control surface the middleware needs.
type Admitter interface {
	Admit(ctx context.Context, identifier string) Decision
	MaxRequests() int64
}

// Middleware enforces admission control on the wrapped routes and sets
// the X-RateLimit-* headers on every response. Denied requests receive
// a 429 with a Retry-After header and are logged as security events.
func Middleware(limiter Admitter, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := limiter.Admit(r.Context(), ClientKey(r))

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limiter.MaxRequests(), 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				seclog.Log(logger, r, seclog.Event{
					Event:  "rate_limit",
					Result: seclog.ResultBlocked,
					Reason: "admission denied",
				})

				retryAfter := int64(time.Until(decision.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.RateLimitedResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
