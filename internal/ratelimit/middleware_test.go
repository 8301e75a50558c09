package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		userAgent  string
		want       string
	}{
		{
			name:       "forwarded-for wins",
			forwarded:  "203.0.113.7, 10.0.0.1",
			realIP:     "198.51.100.2",
			remoteAddr: "192.0.2.1:1234",
			userAgent:  "curl/8",
			want:       "203.0.113.7:curl/8",
		},
		{
			name:       "real-ip fallback",
			realIP:     "198.51.100.2",
			remoteAddr: "192.0.2.1:1234",
			userAgent:  "curl/8",
			want:       "198.51.100.2:curl/8",
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "192.0.2.1:1234",
			userAgent:  "curl/8",
			want:       "192.0.2.1:curl/8",
		},
		{
			name:       "user agent is truncated",
			remoteAddr: "192.0.2.1:1234",
			userAgent:  strings.Repeat("a", 80),
			want:       "192.0.2.1:" + strings.Repeat("a", 50),
		},
		{
			name:       "missing user agent",
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1:unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/v1/links", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-Ip", tt.realIP)
			}
			if tt.userAgent != "" {
				r.Header.Set("User-Agent", tt.userAgent)
			}

			assert.Equal(t, tt.want, ClientKey(r))
		})
	}
}

type stubAdmitter struct {
	decision Decision
	max      int64
}

func (a *stubAdmitter) Admit(ctx context.Context, identifier string) Decision {
	return a.decision
}

func (a *stubAdmitter) MaxRequests() int64 {
	return a.max
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("allowed request reaches the handler with headers set", func(t *testing.T) {
		resetAt := time.Now().Add(time.Minute)
		admitter := &stubAdmitter{
			decision: Decision{Allowed: true, Remaining: 4, ResetAt: resetAt},
			max:      5,
		}

		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/v1/links", nil)

		Middleware(admitter, discardLogger())(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("denied request gets 429 with retry-after", func(t *testing.T) {
		admitter := &stubAdmitter{
			decision: Decision{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(30 * time.Second)},
			max:      5,
		}

		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/v1/links", nil)

		Middleware(admitter, discardLogger())(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "Rate limit exceeded")
	})
}
