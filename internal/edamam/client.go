package edamam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/logging"
)

// Package-level logger specific to edamam service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "edamam.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "edamam", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize edamam file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "edamam")
		closeLogger = func() error { return nil }
	}
}

// Client provides methods for interacting with the Edamam API
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	debug      bool

	firstCallMu sync.Once

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

// NewClient creates a new Edamam API client
func NewClient(config Config) (*Client, error) {
	if config.AppID == "" || config.AppKey == "" {
		return nil, errors.Newf("Edamam app_id and app_key are required").
			Category(errors.CategoryConfiguration).
			Component("edamam").
			Build()
	}

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

	logger.Info("Edamam client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS,
		"debug", config.Debug,
		"credentials_configured", config.AppID != "" && config.AppKey != "")

	return client, nil
}

// Close cleans up client resources
func (c *Client) Close() {
	logger.Info("Closing Edamam client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing edamam logger: %v", err)
		}
	}
}

// SearchURL returns the credential-free request URL for a query. The
// crawl queue uses it for deduplication and politeness accounting.
func (c *Client) SearchURL(query string) string {
	params := url.Values{}
	params.Set("q", query)
	return fmt.Sprintf("%s/search?%s", c.config.BaseURL, params.Encode())
}

// SearchRecipes retrieves recipe hits for a search query. The query is
// sent as-is; callers are expected to have normalized it already.
func (c *Client) SearchRecipes(ctx context.Context, query string) ([]Hit, error) {
	if query == "" {
		return nil, errors.Newf("search query is empty").
			Category(errors.CategoryValidation).
			Component("edamam").
			Build()
	}

	cacheKey := fmt.Sprintf("search:%s", query)
	if cached, found := c.cache.Get(cacheKey); found {
		if hits, ok := cached.([]Hit); ok {
			c.metrics.mu.Lock()
			c.metrics.cacheHits++
			c.metrics.mu.Unlock()

			logger.Debug("Edamam search cache hit", "cache_key", cacheKey, "hits", len(hits))
			return hits, nil
		}
	}

	c.metrics.mu.Lock()
	c.metrics.cacheMisses++
	c.metrics.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("app_id", c.config.AppID)
	params.Set("app_key", c.config.AppKey)
	params.Set("q", query)
	requestURL := fmt.Sprintf("%s/search?%s", c.config.BaseURL, params.Encode())

	var response SearchResponse
	if err := c.doRequestWithRetry(reqCtx, requestURL, &response); err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, response.Hits, cache.DefaultExpiration)

	logger.Info("Edamam search complete", "query", query, "hits", len(response.Hits))
	return response.Hits, nil
}

// doRequest performs a rate-limited GET and decodes the JSON response
func (c *Client) doRequest(ctx context.Context, requestURL string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.New(err).
			Category(errors.CategoryTimeout).
			Component("edamam").
			Build()
	}

	start := time.Now()
	c.metrics.mu.Lock()
	c.metrics.apiCalls++
	c.metrics.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", redactCredentials(requestURL)).
			Component("edamam").
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

		logger.Error("Edamam API request failed",
			"error", err,
			"url", redactCredentials(requestURL))
		return errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", redactCredentials(requestURL)).
			Component("edamam").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Component("edamam").
			Build()
	}

	if resp.StatusCode >= 400 {
		c.metrics.mu.Lock()
		c.metrics.apiErrors++
		c.metrics.mu.Unlock()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			logger.Error("Edamam API authentication failed",
				"status_code", resp.StatusCode,
				"message", "Check your Edamam app_id and app_key in the configuration")
		} else {
			logger.Warn("Edamam API error response",
				"status_code", resp.StatusCode,
				"url", redactCredentials(requestURL))
		}

		return errors.Newf("Edamam API error (status %d)", resp.StatusCode).
			Category(getErrorCategory(resp.StatusCode)).
			Context("status_code", resp.StatusCode).
			Context("url", redactCredentials(requestURL)).
			Component("edamam").
			Build()
	}

	if result != nil {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			responsePreview := string(bodyBytes)
			if len(responsePreview) > 500 {
				responsePreview = responsePreview[:500] + "..."
			}
			logger.Error("Failed to parse Edamam API response",
				"error", err,
				"response_size", len(bodyBytes),
				"response_preview", responsePreview)
			return errors.Newf("failed to parse response: %w", err).
				Category(errors.CategoryParsing).
				Context("response_size", len(bodyBytes)).
				Component("edamam").
				Build()
		}
	}

	duration := time.Since(start)
	c.metrics.mu.Lock()
	c.metrics.totalDuration += duration
	c.metrics.mu.Unlock()

	if resp.StatusCode == http.StatusOK {
		c.firstCallMu.Do(func() {
			logger.Info("Edamam API authentication successful",
				"message", "Edamam credentials are valid and working")
		})
		if c.debug {
			logger.Debug("Edamam API response",
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"response_size", len(bodyBytes))
		}
	}

	return nil
}

// doRequestWithRetry wraps doRequest with retry logic for transient failures
func (c *Client) doRequestWithRetry(ctx context.Context, requestURL string, result any) error {
	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := c.doRequest(ctx, requestURL, result)
		if err == nil {
			return nil
		}

		var enhancedErr *errors.EnhancedError
		if errors.As(err, &enhancedErr) {
			if enhancedErr.Category == errors.CategoryConfiguration ||
				enhancedErr.Category == errors.CategoryValidation {
				return err
			}
			if statusCode, ok := enhancedErr.Context["status_code"].(int); ok {
				if statusCode >= 400 && statusCode < 500 && statusCode != 429 {
					return err
				}
			}
		}

		lastErr = err
		if ctx.Err() != nil {
			return lastErr
		}

		if attempt < maxRetries-1 {
			delay := time.Duration(attempt+1) * 500 * time.Millisecond
			logger.Warn("Edamam API request failed, retrying",
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"delay_ms", delay.Milliseconds(),
				"error", err.Error())

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

// redactCredentials strips the app_id/app_key query parameters before a
// URL reaches the log stream.
func redactCredentials(requestURL string) string {
	parsed, err := url.Parse(requestURL)
	if err != nil {
		return requestURL
	}
	params := parsed.Query()
	for _, key := range []string{"app_id", "app_key"} {
		if params.Has(key) {
			params.Set(key, "REDACTED")
		}
	}
	parsed.RawQuery = params.Encode()
	return parsed.String()
}

// getErrorCategory determines the appropriate error category based on HTTP status code
func getErrorCategory(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case 401, 403:
		return errors.CategoryConfiguration
	case 404:
		return errors.CategoryNotFound
	case 500, 502, 503, 504:
		return errors.CategoryNetwork
	default:
		return errors.CategoryHTTP
	}
}

// Metrics represents Edamam client performance metrics
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
