package safety

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	verdictKeyPrefix = "gsb:"

	// DefaultVerdictTTL bounds how long a safety verdict may be reused
	// before the next validation triggers a fresh external lookup.
	DefaultVerdictTTL = time.Hour
)

// Verdict is a cached outcome of an external safety lookup.
// It is usable only while the current time is before ExpiresAt.
type Verdict struct {
	IsSafe    bool      `json:"is_safe"`
	CheckedAt time.Time `json:"checked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verdictStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// VerdictCache stores safety verdicts keyed by destination URL. The
// cache is an optimization, never a correctness dependency: every store
// failure is reported as a miss or swallowed as a no-op write.
type VerdictCache struct {
	store verdictStore
	ttl   time.Duration
}

func NewVerdictCache(store verdictStore, ttl time.Duration) *VerdictCache {
	if ttl <= 0 {
		ttl = DefaultVerdictTTL
	}

	return &VerdictCache{
		store: store,
		ttl:   ttl,
	}
}

// verdictKey derives a deterministic store key from the exact URL string.
// Equivalent-but-different URLs hash to different keys on purpose.
func verdictKey(url string) string {
	return verdictKeyPrefix + base64.StdEncoding.EncodeToString([]byte(url))
}

// Lookup returns the unexpired verdict for url, if any. An expired entry
// is purged as a side effect and reported as a miss.
func (c *VerdictCache) Lookup(ctx context.Context, url string) (Verdict, bool) {
	key := verdictKey(url)

	val, err := c.store.Get(ctx, key)
	if err != nil {
		return Verdict{}, false
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(val), &verdict); err != nil {
		return Verdict{}, false
	}

	if !time.Now().Before(verdict.ExpiresAt) {
		_ = c.store.Delete(ctx, key)
		return Verdict{}, false
	}

	return verdict, true
}

// Store caches a fresh verdict for url, overwriting any previous entry.
func (c *VerdictCache) Store(ctx context.Context, url string, isSafe bool) {
	now := time.Now()

	verdict := Verdict{
		IsSafe:    isSafe,
		CheckedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(verdict)
	if err != nil {
		return
	}

	_ = c.store.Set(ctx, verdictKey(url), string(data), c.ttl)
}

// Invalidate removes the cached verdict for a single URL.
func (c *VerdictCache) Invalidate(ctx context.Context, url string) error {
	const op = "safety.VerdictCache.Invalidate"

	if err := c.store.Delete(ctx, verdictKey(url)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// InvalidateAll removes every cached verdict.
func (c *VerdictCache) InvalidateAll(ctx context.Context) error {
	const op = "safety.VerdictCache.InvalidateAll"

	keys, err := c.store.Keys(ctx, verdictKeyPrefix)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
