// Package safety validates destination URLs before a link is created:
// syntactic checks, a hostname blacklist, and a cache-backed lookup
// against an external threat-intelligence service.
package safety

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// Rejection reasons, one per validation gate.
const (
	ReasonEmptyURL    = "URL is required."
	ReasonInvalidURL  = "URL must be a valid http or https address."
	ReasonBlacklisted = "URL domain is not allowed."
	ReasonUnsafe      = "URL was flagged as unsafe."
)

var blacklistedDomains = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
	"malicious-site.com",
	"phishing-example.com",
}

type checker interface {
	Check(ctx context.Context, url string) (bool, error)
}

// Result is an accept/reject decision for one candidate URL.
type Result struct {
	Valid  bool
	Reason string
}

// Validator runs the validation gates in order, short-circuiting at the
// first failure. The external safety check fails open: if the service
// is unreachable or misbehaves, the URL is treated as safe and the
// degraded condition is logged.
type Validator struct {
	cache   *VerdictCache
	checker checker
	logger  *slog.Logger
}

func NewValidator(cache *VerdictCache, checker checker, logger *slog.Logger) *Validator {
	return &Validator{
		cache:   cache,
		checker: checker,
		logger:  logger,
	}
}

func (v *Validator) Validate(ctx context.Context, rawURL string) Result {
	const op = "safety.Validator.Validate"

	if rawURL == "" {
		return Result{Reason: ReasonEmptyURL}
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return Result{Reason: ReasonInvalidURL}
	}

	if isBlacklistedHost(u.Hostname()) {
		return Result{Reason: ReasonBlacklisted}
	}

	isSafe, cached := v.lookupVerdict(ctx, rawURL)
	if !cached {
		isSafe, err = v.checker.Check(ctx, rawURL)
		if err != nil {
			v.logger.Warn(
				"safety check degraded, failing open",
				slog.Group(op, slog.Any("err", err)),
			)
		} else {
			v.storeVerdict(ctx, rawURL, isSafe)
		}
	}

	if !isSafe {
		return Result{Reason: ReasonUnsafe}
	}

	return Result{Valid: true}
}

func (v *Validator) lookupVerdict(ctx context.Context, rawURL string) (isSafe, ok bool) {
	if v.cache == nil {
		return false, false
	}

	verdict, ok := v.cache.Lookup(ctx, rawURL)
	return verdict.IsSafe, ok
}

func (v *Validator) storeVerdict(ctx context.Context, rawURL string, isSafe bool) {
	if v.cache != nil {
		v.cache.Store(ctx, rawURL, isSafe)
	}
}

func isBlacklistedHost(hostname string) bool {
	hostname = strings.ToLower(hostname)

	for _, blacklisted := range blacklistedDomains {
		if strings.Contains(hostname, blacklisted) {
			return true
		}
	}

	return false
}
