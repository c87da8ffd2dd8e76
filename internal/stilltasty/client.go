package stilltasty

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/logging"
)

// Package-level logger specific to stilltasty service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "stilltasty.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "stilltasty", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize stilltasty file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "stilltasty")
		closeLogger = func() error { return nil }
	}
}

// Client provides methods for searching and scraping StillTasty
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
	debug      bool

	// Metrics
	metrics struct {
		searches      int64
		itemFetches   int64
		cacheHits     int64
		cacheMisses   int64
		fetchErrors   int64
		totalDuration time.Duration
		mu            sync.RWMutex
	}
}

// NewClient creates a new StillTasty client
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

	logger.Info("StillTasty client initialized",
		"base_url", config.BaseURL,
		"cache_ttl", config.CacheTTL,
		"rate_limit_ms", config.RateLimitMS,
		"debug", config.Debug)

	return client
}

// Close cleans up client resources
func (c *Client) Close() {
	logger.Info("Closing StillTasty client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing stilltasty logger: %v", err)
		}
	}
}

// SearchURL returns the search form endpoint. The crawl queue uses it
// for politeness accounting.
func (c *Client) SearchURL() string {
	return c.config.BaseURL + "/searchitems/search"
}

// Search posts a food query to the search form and returns the candidate
// entries found on the result page. Link and name counts must line up;
// a mismatch means the page layout changed and is reported as a parse
// failure rather than a partial result.
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Newf("search query is empty").
			Category(errors.CategoryValidation).
			Component("stilltasty").
			Build()
	}

	cacheKey := fmt.Sprintf("search:%s", query)
	if cached, found := c.cache.Get(cacheKey); found {
		if candidates, ok := cached.([]Candidate); ok {
			c.metrics.mu.Lock()
			c.metrics.cacheHits++
			c.metrics.mu.Unlock()

			logger.Debug("StillTasty search cache hit", "cache_key", cacheKey, "candidates", len(candidates))
			return candidates, nil
		}
	}

	c.metrics.mu.Lock()
	c.metrics.cacheMisses++
	c.metrics.searches++
	c.metrics.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	searchURL := c.SearchURL()
	form := url.Values{"search": {query}}

	doc, err := c.fetchDocument(reqCtx, http.MethodPost, searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	var mismatch bool
	doc.Find("p.srclisting a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		name := strings.TrimSpace(sel.Text())
		if !ok || href == "" || name == "" {
			mismatch = true
			return
		}
		candidates = append(candidates, Candidate{Name: name, URL: href})
	})
	if mismatch {
		return nil, errors.Newf("search result listing has entries without both link and name").
			Category(errors.CategoryParsing).
			Context("query", query).
			Component("stilltasty").
			Build()
	}

	c.cache.Set(cacheKey, candidates, cache.DefaultExpiration)

	logger.Info("StillTasty search complete", "query", query, "candidates", len(candidates))
	return candidates, nil
}

// FetchItem retrieves a food detail page and extracts the parallel
// storage method and duration lists.
func (c *Client) FetchItem(ctx context.Context, itemURL string) (*Item, error) {
	cacheKey := fmt.Sprintf("item:%s", itemURL)
	if cached, found := c.cache.Get(cacheKey); found {
		if item, ok := cached.(*Item); ok {
			c.metrics.mu.Lock()
			c.metrics.cacheHits++
			c.metrics.mu.Unlock()

			logger.Debug("StillTasty item cache hit", "cache_key", cacheKey)
			return item, nil
		}
	}

	c.metrics.mu.Lock()
	c.metrics.cacheMisses++
	c.metrics.itemFetches++
	c.metrics.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	doc, err := c.fetchDocument(reqCtx, http.MethodGet, itemURL, nil)
	if err != nil {
		return nil, err
	}

	var methods, durations []string
	doc.Find("div.food-inside > div:first-child span").Each(func(_ int, sel *goquery.Selection) {
		methods = append(methods, strings.TrimSpace(sel.Text()))
	})
	doc.Find("div.food-inside > div:nth-child(2) span").Each(func(_ int, sel *goquery.Selection) {
		durations = append(durations, strings.TrimSpace(sel.Text()))
	})

	if len(methods) != len(durations) {
		return nil, errors.Newf("storage method and duration lists do not line up (%d vs %d)", len(methods), len(durations)).
			Category(errors.CategoryParsing).
			Context("url", itemURL).
			Component("stilltasty").
			Build()
	}

	item := &Item{URL: itemURL, Entries: make([]StorageEntry, 0, len(methods))}
	for i := range methods {
		item.Entries = append(item.Entries, StorageEntry{
			MethodText: methods[i],
			LifeText:   durations[i],
		})
	}

	c.cache.Set(cacheKey, item, cache.DefaultExpiration)

	logger.Info("StillTasty item fetched", "url", itemURL, "storage_entries", len(item.Entries))
	return item, nil
}

// fetchDocument performs a rate-limited request and parses the body
func (c *Client) fetchDocument(ctx context.Context, method, requestURL string, body io.Reader) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryTimeout).
			Context("url", requestURL).
			Component("stilltasty").
			Build()
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("method", method).
			Context("url", requestURL).
			Component("stilltasty").
			Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.mu.Lock()
		c.metrics.fetchErrors++
		c.metrics.mu.Unlock()

		logger.Error("StillTasty request failed", "error", err, "method", method, "url", requestURL)
		return nil, errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("method", method).
			Context("url", requestURL).
			Component("stilltasty").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", requestURL).
			Context("status_code", resp.StatusCode).
			Component("stilltasty").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.mu.Lock()
		c.metrics.fetchErrors++
		c.metrics.mu.Unlock()

		logger.Warn("StillTasty error response",
			"status_code", resp.StatusCode,
			"url", requestURL)
		return nil, errors.Newf("StillTasty returned status %d", resp.StatusCode).
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Context("url", requestURL).
			Component("stilltasty").
			Build()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Newf("failed to parse HTML: %w", err).
			Category(errors.CategoryParsing).
			Context("url", requestURL).
			Component("stilltasty").
			Build()
	}

	duration := time.Since(start)
	c.metrics.mu.Lock()
	c.metrics.totalDuration += duration
	c.metrics.mu.Unlock()

	if c.debug {
		logger.Debug("StillTasty response",
			"method", method,
			"url", requestURL,
			"duration_ms", duration.Milliseconds(),
			"response_size", len(bodyBytes))
	}

	return doc, nil
}

// Metrics represents StillTasty client performance metrics
type Metrics struct {
	Searches      int64         `json:"searches"`
	ItemFetches   int64         `json:"item_fetches"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	FetchErrors   int64         `json:"fetch_errors"`
	TotalDuration time.Duration `json:"total_duration"`
}

// GetMetrics returns current client metrics
func (c *Client) GetMetrics() Metrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	return Metrics{
		Searches:      c.metrics.searches,
		ItemFetches:   c.metrics.itemFetches,
		CacheHits:     c.metrics.cacheHits,
		CacheMisses:   c.metrics.cacheMisses,
		FetchErrors:   c.metrics.fetchErrors,
		TotalDuration: c.metrics.totalDuration,
	}
}
