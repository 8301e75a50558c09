package referrer

import (
	"net/http/httptest"
	"testing"

	"github.com/shootlink/shortener/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAnalyze(t *testing.T) {
	const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

	tests := []struct {
		name      string
		target    string
		referrer  string
		userAgent string
		want      models.ReferrerInfo
	}{
		{
			name:      "direct traffic",
			target:    "/r/abc1234",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "direct",
				Medium:    "none",
				Referrer:  "direct",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "utm parameters win over referrer",
			target:    "/r/abc1234?utm_source=newsletter&utm_medium=email&utm_campaign=launch",
			referrer:  "https://www.google.com/search",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "newsletter",
				Medium:    "email",
				Campaign:  "launch",
				Referrer:  "https://www.google.com/search",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "utm source without medium",
			target:    "/r/abc1234?utm_source=newsletter",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "newsletter",
				Medium:    "unknown",
				Referrer:  "direct",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "facebook subdomain referrer",
			target:    "/r/abc1234",
			referrer:  "https://l.facebook.com/l.php?u=something",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "facebook",
				Medium:    "social",
				Referrer:  "https://l.facebook.com/l.php?u=something",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "x.com referrer maps to twitter",
			target:    "/r/abc1234",
			referrer:  "https://x.com/some/status",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "twitter",
				Medium:    "social",
				Referrer:  "https://x.com/some/status",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "slack referrer",
			target:    "/r/abc1234",
			referrer:  "https://app.slack.com/client/T01",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "slack",
				Medium:    "chat",
				Referrer:  "https://app.slack.com/client/T01",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "google referrer",
			target:    "/r/abc1234",
			referrer:  "https://www.google.com/search?q=test",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "google",
				Medium:    "search",
				Referrer:  "https://www.google.com/search?q=test",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "unknown host is a referral",
			target:    "/r/abc1234",
			referrer:  "https://blog.example.org/post/1",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "blog.example.org",
				Medium:    "referral",
				Referrer:  "https://blog.example.org/post/1",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "unparsable referrer",
			target:    "/r/abc1234",
			referrer:  "not a url",
			userAgent: desktopUA,
			want: models.ReferrerInfo{
				Source:    "unknown",
				Medium:    "unknown",
				Referrer:  "not a url",
				UserAgent: desktopUA,
			},
		},
		{
			name:      "in-app browser without referrer",
			target:    "/r/abc1234",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS) KakaoTalk 10.0",
			want: models.ReferrerInfo{
				Source:    "mobile_app",
				Medium:    "direct",
				Referrer:  "direct",
				UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS) KakaoTalk 10.0",
				IsMobile:  true,
				IsApp:     true,
			},
		},
		{
			name:      "in-app browser with referrer keeps referrer classification",
			target:    "/r/abc1234",
			referrer:  "https://www.facebook.com/",
			userAgent: "Mozilla/5.0 (iPhone) Slack/4.0",
			want: models.ReferrerInfo{
				Source:    "facebook",
				Medium:    "social",
				Referrer:  "https://www.facebook.com/",
				UserAgent: "Mozilla/5.0 (iPhone) Slack/4.0",
				IsMobile:  true,
				IsApp:     true,
			},
		},
		{
			name:      "utm parameters win over in-app override",
			target:    "/r/abc1234?utm_source=newsletter&utm_medium=email",
			userAgent: "Mozilla/5.0 (iPhone) Telegram/9.0",
			want: models.ReferrerInfo{
				Source:    "newsletter",
				Medium:    "email",
				Referrer:  "direct",
				UserAgent: "Mozilla/5.0 (iPhone) Telegram/9.0",
				IsMobile:  true,
				IsApp:     true,
			},
		},
		{
			name:   "missing user agent",
			target: "/r/abc1234",
			want: models.ReferrerInfo{
				Source:    "direct",
				Medium:    "none",
				Referrer:  "direct",
				UserAgent: "unknown",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if tt.referrer != "" {
				r.Header.Set("Referer", tt.referrer)
			}
			if tt.userAgent != "" {
				r.Header.Set("User-Agent", tt.userAgent)
			}

			got := Analyze(r)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	r := httptest.NewRequest("GET", "/r/abc1234?utm_source=ads", nil)
	r.Header.Set("Referer", "https://www.naver.com/")
	r.Header.Set("User-Agent", "Mozilla/5.0 (Android) Mobile")

	first := Analyze(r)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Analyze(r))
	}
}

func TestFormatDisplay(t *testing.T) {
	tests := []struct {
		name string
		info models.ReferrerInfo
		want string
	}{
		{
			name: "direct",
			info: models.ReferrerInfo{Source: "direct", Medium: "none"},
			want: "Direct",
		},
		{
			name: "mobile app",
			info: models.ReferrerInfo{Source: "mobile_app", Medium: "direct"},
			want: "Mobile App",
		},
		{
			name: "source with medium",
			info: models.ReferrerInfo{Source: "google", Medium: "search"},
			want: "google (search)",
		},
		{
			name: "unknown medium is hidden",
			info: models.ReferrerInfo{Source: "newsletter", Medium: "unknown"},
			want: "newsletter",
		},
		{
			name: "with campaign",
			info: models.ReferrerInfo{Source: "newsletter", Medium: "email", Campaign: "launch"},
			want: "newsletter (email) - launch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDisplay(tt.info))
		})
	}
}

func TestKey(t *testing.T) {
	info := models.ReferrerInfo{Source: "facebook", Medium: "social"}

	assert.Equal(t, "facebook:social", Key(info))
}
