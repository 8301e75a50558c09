// Package referrer classifies inbound redirect traffic into a
// source/medium taxonomy from the Referer header, UTM query parameters
// and the User-Agent. Classification is a pure function of the request:
// malformed or absent input always degrades to "unknown"/"direct",
// it never errors.
package referrer

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shootlink/shortener/internal/models"
)

const (
	SourceDirect    = "direct"
	SourceMobileApp = "mobile_app"
	SourceUnknown   = "unknown"

	MediumNone     = "none"
	MediumDirect   = "direct"
	MediumChat     = "chat"
	MediumSocial   = "social"
	MediumSearch   = "search"
	MediumReferral = "referral"
	MediumUnknown  = "unknown"
)

// knownHosts maps a hostname fragment to its source name and medium.
// Matching is substring-based on the referrer hostname, first hit wins.
var knownHosts = []struct {
	fragment string
	source   string
	medium   string
}{
	{"slack.com", "slack", MediumChat},
	{"kakao.com", "kakaotalk", MediumChat},
	{"kakaotalk", "kakaotalk", MediumChat},
	{"telegram.org", "telegram", MediumChat},
	{"whatsapp.com", "whatsapp", MediumChat},
	{"discord.com", "discord", MediumChat},
	{"teams.microsoft.com", "teams", MediumChat},
	{"facebook.com", "facebook", MediumSocial},
	{"twitter.com", "twitter", MediumSocial},
	{"x.com", "twitter", MediumSocial},
	{"instagram.com", "instagram", MediumSocial},
	{"linkedin.com", "linkedin", MediumSocial},
	{"google.com", "google", MediumSearch},
	{"naver.com", "naver", MediumSearch},
}

var mobilePatterns = []string{"Mobile", "Android", "iPhone", "iPad"}

var appPatterns = []string{"Slack", "KakaoTalk", "Telegram", "WhatsApp", "Discord", "Teams"}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Analyze classifies a single request. Precedence: UTM parameters win
// over the referrer header, which wins over the direct fallback. The
// in-app override applies only to otherwise-direct traffic.
func Analyze(r *http.Request) models.ReferrerInfo {
	rawReferrer := r.Header.Get("Referer")

	query := r.URL.Query()
	utmSource := query.Get("utm_source")
	utmMedium := query.Get("utm_medium")
	utmCampaign := query.Get("utm_campaign")

	userAgent := r.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = SourceUnknown
	}

	isMobile := containsAny(userAgent, mobilePatterns)
	isApp := containsAny(userAgent, appPatterns)

	source := SourceDirect
	medium := MediumNone

	switch {
	case utmSource != "":
		source = utmSource
		medium = utmMedium
		if medium == "" {
			medium = MediumUnknown
		}
	case rawReferrer != "":
		source, medium = classifyReferrer(rawReferrer)
	}

	// Traffic from in-app browsers often carries no referrer header.
	if isApp && rawReferrer == "" && utmSource == "" {
		source = SourceMobileApp
		medium = MediumDirect
	}

	referrer := rawReferrer
	if referrer == "" {
		referrer = SourceDirect
	}

	return models.ReferrerInfo{
		Source:    source,
		Medium:    medium,
		Campaign:  utmCampaign,
		Referrer:  referrer,
		UserAgent: userAgent,
		IsMobile:  isMobile,
		IsApp:     isApp,
	}
}

func classifyReferrer(rawReferrer string) (source, medium string) {
	u, err := url.Parse(rawReferrer)
	if err != nil || u.Hostname() == "" {
		return SourceUnknown, MediumUnknown
	}

	hostname := strings.ToLower(u.Hostname())

	for _, known := range knownHosts {
		if strings.Contains(hostname, known.fragment) {
			return known.source, known.medium
		}
	}

	return hostname, MediumReferral
}

// FormatDisplay renders a human-readable label for a classification.
func FormatDisplay(info models.ReferrerInfo) string {
	switch info.Source {
	case SourceDirect:
		return "Direct"
	case SourceMobileApp:
		return "Mobile App"
	}

	display := info.Source

	if info.Medium != "" && info.Medium != MediumUnknown {
		display = fmt.Sprintf("%s (%s)", display, info.Medium)
	}

	if info.Campaign != "" {
		display = fmt.Sprintf("%s - %s", display, info.Campaign)
	}

	return display
}

// Key derives the source:medium bucket used for click attribution.
func Key(info models.ReferrerInfo) string {
	return info.Source + ":" + info.Medium
}
