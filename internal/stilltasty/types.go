// Package stilltasty provides a client for the StillTasty shelf-life site
package stilltasty

import "time"

// Candidate is a single search result entry
type Candidate struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// StorageEntry pairs a storage method heading with its duration text,
// both verbatim from the item page.
type StorageEntry struct {
	MethodText string `json:"method_text"`
	LifeText   string `json:"life_text"`
}

// Item is the parsed detail page for a foodstuff
type Item struct {
	URL     string         `json:"url"`
	Entries []StorageEntry `json:"entries"`
}

// Config holds configuration for the StillTasty client
type Config struct {
	BaseURL     string        `json:"base_url"`
	Timeout     time.Duration `json:"timeout"`
	CacheTTL    time.Duration `json:"cache_ttl"`
	RateLimitMS int           `json:"rate_limit_ms"` // Milliseconds between requests
	UserAgent   string        `json:"user_agent"`
	Debug       bool          `json:"debug"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://www.stilltasty.com",
		Timeout:     30 * time.Second,
		CacheTTL:    24 * time.Hour, // shelf-life pages rarely change
		RateLimitMS: 1000,
	}
}
