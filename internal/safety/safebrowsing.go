package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

	defaultClientID      = "shoot-link"
	defaultClientVersion = "1.0.0"
	defaultTimeout       = 5 * time.Second
)

// ErrNotConfigured is returned when no API key is set and the lookup is skipped.
var ErrNotConfigured = errors.New("safe browsing api key is not configured")

var threatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

// Client queries the Google Safe Browsing v4 threatMatches:find endpoint.
// Callers are expected to treat every returned error as "safe" (fail open);
// the client itself only reports what happened.
type Client struct {
	httpClient    *http.Client
	endpoint      string
	apiKey        string
	clientID      string
	clientVersion string
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithClientInfo(id, version string) ClientOption {
	return func(c *Client) {
		c.clientID = id
		c.clientVersion = version
	}
}

func NewClient(endpoint, apiKey string, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: defaultTimeout},
		endpoint:      endpoint,
		apiKey:        apiKey,
		clientID:      defaultClientID,
		clientVersion: defaultClientVersion,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type threatMatchesRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type threatMatchesResponse struct {
	Matches []json.RawMessage `json:"matches"`
}

// Check reports whether url has no reported threat classification.
func (c *Client) Check(ctx context.Context, url string) (bool, error) {
	const op = "safety.Client.Check"

	if c.apiKey == "" {
		return true, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	reqBody := threatMatchesRequest{
		Client: clientInfo{
			ClientID:      c.clientID,
			ClientVersion: c.clientVersion,
		},
		ThreatInfo: threatInfo{
			ThreatTypes:      threatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: url}},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return true, fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(data))
	if err != nil {
		return true, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true, fmt.Errorf("%s: unexpected status: %d", op, resp.StatusCode)
	}

	var result threatMatchesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return true, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	return len(result.Matches) == 0, nil
}
