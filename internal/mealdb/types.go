// Package mealdb provides a client for TheMealDB recipe discovery API
package mealdb

import "time"

// Meal is a single entry from a TheMealDB search response
type Meal struct {
	ID       string `json:"idMeal"`
	Name     string `json:"strMeal"`
	Category string `json:"strCategory"`
	Area     string `json:"strArea"`
	ThumbURL string `json:"strMealThumb"`
}

// Config holds configuration for the MealDB client
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
		BaseURL:     "https://www.themealdb.com/api/json/v1/1",
		Timeout:     30 * time.Second,
		CacheTTL:    1 * time.Hour,
		RateLimitMS: 1000,
	}
}
