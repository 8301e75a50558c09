// Package seclog emits sanitized security events. It is a stateless
// helper over an explicit *slog.Logger sink: client addresses are
// masked, user agents are stripped of version and hash fragments, and
// URLs are reduced to scheme and host before anything is logged.
package seclog

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	ResultSuccess = "success"
	ResultBlocked = "blocked"
	ResultError   = "error"
)

// Event describes a single security-relevant occurrence.
type Event struct {
	Event  string
	Result string
	Reason string
	URL    string
}

var (
	versionPattern = regexp.MustCompile(`[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}`)
	hashPattern    = regexp.MustCompile(`(?i)[a-f0-9]{8,}`)
)

// Log writes one sanitized security event to logger.
func Log(logger *slog.Logger, r *http.Request, ev Event) {
	attrs := []any{
		slog.String("event", ev.Event),
		slog.String("result", ev.Result),
		slog.String("ip", SanitizeIP(ClientIP(r))),
		slog.String("user_agent", SanitizeUserAgent(r.Header.Get("User-Agent"))),
	}

	if ev.Reason != "" {
		attrs = append(attrs, slog.String("reason", ev.Reason))
	}
	if ev.URL != "" {
		attrs = append(attrs, slog.String("url", SanitizeURL(ev.URL)))
	}

	logger.Info("security event", attrs...)
}

// ClientIP returns the best-available client address: the first entry
// of X-Forwarded-For, then X-Real-IP, then the connection address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
	}

	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}

// SanitizeIP masks the host-identifying tail of an address.
func SanitizeIP(ip string) string {
	if strings.Contains(ip, ".") {
		parts := strings.Split(ip, ".")
		if len(parts) == 4 {
			return strings.Join(parts[:3], ".") + ".[MASKED]"
		}
	}

	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) > 2 {
			return strings.Join(parts[:len(parts)-2], ":") + ":[MASKED]"
		}
	}

	return "[MASKED]"
}

// SanitizeUserAgent strips version numbers and hash-like tokens and
// bounds the length.
func SanitizeUserAgent(userAgent string) string {
	userAgent = versionPattern.ReplaceAllString(userAgent, "[VERSION]")
	userAgent = hashPattern.ReplaceAllString(userAgent, "[HASH]")

	if len(userAgent) > 100 {
		userAgent = userAgent[:100]
	}

	return userAgent
}

// SanitizeURL keeps only the scheme and host of a URL.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "[INVALID_URL]"
	}

	return u.Scheme + "://" + u.Hostname()
}
