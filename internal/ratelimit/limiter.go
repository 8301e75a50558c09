// Package ratelimit admits or denies requests per client using a
// fixed-window counter kept in the shared store. All mutual exclusion
// is delegated to the store's atomic hash increments; the limiter holds
// no in-process state.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

const (
	keyPrefix = "ratelimit:"

	countField = "count"
	resetField = "reset_at"
)

type limiterStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, n int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Decision is the outcome of one admission check. Remaining and ResetAt
// are suitable for rate-limit response headers.
type Decision struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Limiter implements counter-with-deadline admission control. Any store
// failure admits the request: infrastructure issues must never block
// legitimate traffic entirely.
type Limiter struct {
	store       limiterStore
	maxRequests int64
	window      time.Duration
	logger      *slog.Logger
}

func New(store limiterStore, maxRequests int64, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:       store,
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
	}
}

// MaxRequests returns the per-window admission limit.
func (l *Limiter) MaxRequests() int64 {
	return l.maxRequests
}

// Admit checks and updates the window for identifier.
//
// Two requests racing the window boundary may both observe an elapsed
// window and both reset the counter to 1. The resulting over-admission
// is bounded and accepted.
func (l *Limiter) Admit(ctx context.Context, identifier string) Decision {
	const op = "ratelimit.Limiter.Admit"

	now := time.Now()
	key := keyPrefix + identifier

	fields, err := l.store.HGetAll(ctx, key)
	if err != nil {
		return l.failOpen(op, now, err)
	}

	count, resetAt, ok := parseWindow(fields)

	if !ok || now.After(resetAt) {
		resetAt = now.Add(l.window)

		err := l.store.HSet(ctx, key, map[string]string{
			countField: "1",
			resetField: strconv.FormatInt(resetAt.UnixMilli(), 10),
		})
		if err != nil {
			return l.failOpen(op, now, err)
		}
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			return l.failOpen(op, now, err)
		}

		return Decision{Allowed: true, Remaining: l.maxRequests - 1, ResetAt: resetAt}
	}

	if count >= l.maxRequests {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	newCount, err := l.store.HIncrBy(ctx, key, countField, 1)
	if err != nil {
		return l.failOpen(op, now, err)
	}

	remaining := l.maxRequests - newCount
	if remaining < 0 {
		remaining = 0
	}

	return Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

func (l *Limiter) failOpen(op string, now time.Time, err error) Decision {
	l.logger.Warn(
		"rate limiter degraded, failing open",
		slog.Group(op, slog.Any("err", err)),
	)

	return Decision{Allowed: true, Remaining: l.maxRequests, ResetAt: now.Add(l.window)}
}

func parseWindow(fields map[string]string) (count int64, resetAt time.Time, ok bool) {
	if len(fields) == 0 {
		return 0, time.Time{}, false
	}

	count, err := strconv.ParseInt(fields[countField], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}

	resetMilli, err := strconv.ParseInt(fields[resetField], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}

	return count, time.UnixMilli(resetMilli), true
}
