package models

import "time"

// Link represents a shortened link record.
type Link struct {
	// Slug is the opaque short token associated with the original URL.
	Slug string
	// OriginalURL is the original, full-length URL that the slug resolves to.
	OriginalURL string
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
}

// ReferrerInfo is the classification of a single inbound request.
// It is derived per request and never stored as-is.
type ReferrerInfo struct {
	Source    string
	Medium    string
	Campaign  string
	Referrer  string
	UserAgent string
	IsMobile  bool
	IsApp     bool
}

// ReferrerDetail is the persisted snapshot of the most recent click
// from a given source:medium bucket. Overwritten on every click.
type ReferrerDetail struct {
	Display   string    `json:"display"`
	Source    string    `json:"source"`
	Medium    string    `json:"medium"`
	Campaign  string    `json:"campaign,omitempty"`
	IsMobile  bool      `json:"is_mobile"`
	IsApp     bool      `json:"is_app"`
	Timestamp time.Time `json:"timestamp"`
}

// ReferrerCount is one row of the top-referrers ranking.
type ReferrerCount struct {
	Referrer string
	Count    int64
}

// LinkStats aggregates the click statistics for a single link.
type LinkStats struct {
	TotalClicks  int64
	Last7Days    map[string]int64
	TopReferrers []ReferrerCount
	CreatedAt    time.Time
}
