package mealdb

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/logging"
)

// Package-level logger specific to mealdb service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "mealdb.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "mealdb", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize mealdb file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "mealdb")
		closeLogger = func() error { return nil }
	}
}

// Client provides methods for interacting with the TheMealDB API
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	debug      bool

	// Metrics
	metrics struct {
		apiCalls      int64
		cacheHits     int64
		cacheMisses   int64
		apiErrors     int64
		totalDuration time.Duration
		mu            sync.RWMutex
	}
}

// NewClient creates a new TheMealDB API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	if config.RateLimitMS == 0 {
		config.RateLimitMS = DefaultConfig().RateLimitMS
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache:   cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter: rate.NewLimiter(rate.Every(time.Duration(config.RateLimitMS)*time.Millisecond), 1),
		debug:   config.Debug,
	}

	logger.Info("MealDB client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS,
		"debug", config.Debug)

	return client
}

// Close cleans up client resources
func (c *Client) Close() {
	logger.Info("Closing MealDB client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing mealdb logger: %v", err)
		}
	}
}

// SearchURL returns the request URL a letter search resolves to. The
// crawl queue uses it for deduplication and politeness accounting.
func (c *Client) SearchURL(letter rune) string {
	return fmt.Sprintf("%s/search.php?f=%c", c.config.BaseURL, letter)
}

// SearchByLetter retrieves all meals whose name starts with the given
// letter. A null "meals" field in the response means no results and is
// not an error.
func (c *Client) SearchByLetter(ctx context.Context, letter rune) ([]Meal, error) {
	if letter < 'a' || letter > 'z' {
		return nil, errors.Newf("letter must be a lowercase ascii letter, got %q", letter).
			Category(errors.CategoryValidation).
			Context("letter", string(letter)).
			Component("mealdb").
			Build()
	}

	cacheKey := fmt.Sprintf("letter:%c", letter)
	if cached, found := c.cache.Get(cacheKey); found {
		if meals, ok := cached.([]Meal); ok {
			c.metrics.mu.Lock()
			c.metrics.cacheHits++
			c.metrics.mu.Unlock()

			logger.Debug("MealDB letter cache hit", "cache_key", cacheKey, "meals", len(meals))
			return meals, nil
		}
	}

	c.metrics.mu.Lock()
	c.metrics.cacheMisses++
	c.metrics.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	url := c.SearchURL(letter)
	body, err := c.doRequestWithRetry(reqCtx, url)
	if err != nil {
		return nil, err
	}

	meals, err := parseMeals(body)
	if err != nil {
		c.metrics.mu.Lock()
		c.metrics.apiErrors++
		c.metrics.mu.Unlock()

		logger.Error("Failed to parse MealDB response",
			"error", err,
			"url", url,
			"response_size", len(body))
		return nil, errors.New(err).
			Category(errors.CategoryParsing).
			Context("url", url).
			Component("mealdb").
			Build()
	}

	c.cache.Set(cacheKey, meals, cache.DefaultExpiration)

	logger.Info("MealDB letter search complete", "letter", string(letter), "meals", len(meals))
	return meals, nil
}

// parseMeals tolerates the API's "meals": null convention for empty
// result sets.
func parseMeals(body []byte) ([]Meal, error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	if nullErr := obj.GetNull("meals"); nullErr == nil {
		return []Meal{}, nil
	}

	rawMeals, err := obj.GetObjectArray("meals")
	if err != nil {
		return nil, fmt.Errorf("missing meals field: %w", err)
	}

	meals := make([]Meal, 0, len(rawMeals))
	for _, raw := range rawMeals {
		name, err := raw.GetString("strMeal")
		if err != nil || name == "" {
			continue
		}
		meal := Meal{Name: name}
		// The remaining fields are nice to have but optional.
		meal.ID, _ = raw.GetString("idMeal")
		meal.Category, _ = raw.GetString("strCategory")
		meal.Area, _ = raw.GetString("strArea")
		meal.ThumbURL, _ = raw.GetString("strMealThumb")
		meals = append(meals, meal)
	}
	return meals, nil
}

// doRequest performs a rate-limited GET and returns the response body
func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryTimeout).
			Context("url", url).
			Component("mealdb").
			Build()
	}

	start := time.Now()
	c.metrics.mu.Lock()
	c.metrics.apiCalls++
	c.metrics.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("mealdb").
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.mu.Lock()
		c.metrics.apiErrors++
		c.metrics.mu.Unlock()

		logger.Error("MealDB API request failed", "error", err, "url", url)
		return nil, errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("mealdb").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Component("mealdb").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.mu.Lock()
		c.metrics.apiErrors++
		c.metrics.mu.Unlock()

		logger.Warn("MealDB API error response",
			"status_code", resp.StatusCode,
			"url", url)
		return nil, errors.Newf("MealDB API error (status %d)", resp.StatusCode).
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Context("url", url).
			Component("mealdb").
			Build()
	}

	duration := time.Since(start)
	c.metrics.mu.Lock()
	c.metrics.totalDuration += duration
	c.metrics.mu.Unlock()

	if c.debug {
		logger.Debug("MealDB API response",
			"url", url,
			"duration_ms", duration.Milliseconds(),
			"response_size", len(bodyBytes))
	}

	return bodyBytes, nil
}

// doRequestWithRetry wraps doRequest with retry logic for transient failures
func (c *Client) doRequestWithRetry(ctx context.Context, url string) ([]byte, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		body, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}

		// Client errors are not transient
		var enhancedErr *errors.EnhancedError
		if errors.As(err, &enhancedErr) {
			if statusCode, ok := enhancedErr.Context["status_code"].(int); ok {
				if statusCode >= 400 && statusCode < 500 && statusCode != 429 {
					return nil, err
				}
			}
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt < maxRetries-1 {
			delay := time.Duration(attempt+1) * 500 * time.Millisecond
			logger.Warn("MealDB API request failed, retrying",
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"delay_ms", delay.Milliseconds(),
				"url", url,
				"error", err.Error())

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, lastErr
}

// Metrics represents MealDB client performance metrics
type Metrics struct {
	APICalls      int64         `json:"api_calls"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	APIErrors     int64         `json:"api_errors"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// GetMetrics returns current client metrics
func (c *Client) GetMetrics() Metrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	metrics := Metrics{
		APICalls:      c.metrics.apiCalls,
		CacheHits:     c.metrics.cacheHits,
		CacheMisses:   c.metrics.cacheMisses,
		APIErrors:     c.metrics.apiErrors,
		TotalDuration: c.metrics.totalDuration,
	}
	if metrics.APICalls > 0 {
		metrics.AvgDuration = time.Duration(int64(metrics.TotalDuration) / metrics.APICalls)
	}
	return metrics
}
