// Package client provides the core Wikimedia pageview API HTTP client with
// rate limiting, caching, and error handling.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wikimetrics/pageviews-client/pkg/cache"
	"github.com/wikimetrics/pageviews-client/pkg/ratelimit"
)

// DefaultBaseURL is the production Wikimedia Analytics REST API base URL.
const DefaultBaseURL = "https://wikimedia.org/api/rest_v1"

// Prometheus metrics for pageview client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageviews_requests_total",
		Help: "Total pageview API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pageviews_request_duration_seconds",
		Help:    "Pageview API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageviews_errors_total",
		Help: "Total pageview API errors by class",
	}, []string{"class"})
)

// Client is the HTTP client all pageview queries go through.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for response caching and shared throttle state
	Redis *redis.Client

	// User-Agent header (required by Wikimedia API etiquette)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// BaseURL of the pageview REST API (default: DefaultBaseURL)
	BaseURL string

	// RequestTimeout bounds a single HTTP request
	RequestTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Redis:          redis,
		UserAgent:      userAgent,
		BaseURL:        DefaultBaseURL,
		RequestTimeout: 30 * time.Second,
	}
}

// New creates a new pageview API client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	logger := log.With().Str("component", "pageviews-client").Logger()

	rateLimiter := ratelimit.NewTracker(cfg.Redis, logger)
	cacheManager := cache.NewManager(cfg.Redis)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do performs an HTTP request with rate limiting, caching, and retry handling.
// This is the core request method that orchestrates all client features.
// Responses with status 404 and other 4xx are returned to the caller without
// error; the caller inspects the status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, 0)
}

func (c *Client) do(req *http.Request, cacheTTL time.Duration) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check throttle state
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Throttle state check failed")
		return nil, fmt.Errorf("throttle state check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by throttle cool-down")
		requestsTotal.WithLabelValues(endpoint, "throttled").Inc()
		return nil, fmt.Errorf("request blocked: upstream throttle cool-down active")
	}

	// Step 2: Check cache
	cacheKey := cache.CacheKey{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}

	cachedEntry, err := c.cache.Get(ctx, cacheKey)
	if err != nil && err != cache.ErrCacheMiss {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
	}
	if cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("Serving response from cache")
		requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 3: Set required headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Step 4: Execute HTTP request with retry logic
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing pageview API request")

	var resp *http.Response

	retryErr := retryWithBackoff(ctx, func() error {
		var reqErr error
		resp, reqErr = c.httpClient.Do(req)

		// Network errors
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "http request failed",
				Err:        reqErr,
			}
		}

		if resp.StatusCode >= 400 {
			errClass := ClassifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Pageview API request error")

			// Record upstream throttling so other workers back off too
			if errClass == ErrorClassRateLimit {
				if err := c.rateLimiter.RecordThrottle(ctx, resp.Header); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record throttle state")
				}
			}

			if shouldRetry(errClass) {
				lastErr := &APIError{
					StatusCode: resp.StatusCode,
					ErrorClass: errClass,
					Message:    resp.Status,
				}
				resp.Body.Close() // Close the body before retrying
				return lastErr
			}

			// Don't retry 404/4xx - return success and let the caller handle the status
			return nil
		}

		// Success
		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return nil
	}, classifyRetryError)

	if retryErr != nil {
		return nil, retryErr
	}

	// Step 5: Update cache on success
	if resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else {
			if cacheTTL > 0 {
				entry.Expires = time.Now().Add(cacheTTL)
			}
			if entry.TTL() > 0 {
				if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to cache response")
				} else {
					c.logger.Debug().
						Str("endpoint", endpoint).
						Dur("ttl", entry.TTL()).
						Msg("Cached response")
				}
			}
		}
	}

	return resp, nil
}

// Get performs a GET request against a pageview API endpoint path.
func (c *Client) Get(ctx context.Context, endpoint string) (*http.Response, error) {
	return c.GetWithTTL(ctx, endpoint, 0)
}

// GetWithTTL performs a GET request with an explicit cache TTL override.
// Pageview data for closed time buckets never changes upstream, so callers
// that know the requested range is fully historical pass a long TTL.
func (c *Client) GetWithTTL(ctx context.Context, endpoint string, cacheTTL time.Duration) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.config.BaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.do(req, cacheTTL)
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
