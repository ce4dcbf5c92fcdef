package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wikimetrics/pageviews-client/internal/testutil"
	"github.com/wikimetrics/pageviews-client/pkg/cache"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNew_Validation(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			config: Config{
				Redis:     redisClient,
				UserAgent: "TestApp/1.0.0 (test@example.com)",
			},
			expectError: false,
		},
		{
			name: "nil redis",
			config: Config{
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    "redis client is required",
		},
		{
			name: "empty user agent",
			config: Config{
				Redis:     redisClient,
				UserAgent: "",
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	userAgent := "TestApp/1.0.0"
	cfg := DefaultConfig(redisClient, userAgent)

	if cfg.Redis != redisClient {
		t.Error("Redis client not set correctly")
	}
	if cfg.UserAgent != userAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, userAgent)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
}

// newMockedClient creates a client wired to a mock upstream.
func newMockedClient(t *testing.T, mock *testutil.MockWikimedia) *Client {
	t.Helper()

	redisClient := setupTestRedis(t)

	cfg := DefaultConfig(redisClient, "TestApp/1.0.0 (test@example.com)")
	cfg.BaseURL = mock.URL()

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func TestGet_SuccessAndCache(t *testing.T) {
	mock := testutil.NewMockWikimedia()
	defer mock.Close()

	path := "/metrics/pageviews/top/en.wikipedia/all-access/2025/07/01"
	body := testutil.TopBody("en.wikipedia", []testutil.TopEntry{
		{Article: "Main_Page", Views: 100, Rank: 1},
	})
	mock.SetResponse(path, testutil.NewHealthyResponse(body))

	c := newMockedClient(t, mock)
	ctx := context.Background()

	// First request goes upstream and populates the cache
	resp1, err := c.Get(ctx, path)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	if resp1.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp1.StatusCode)
	}
	if string(body1) != body {
		t.Errorf("Body = %q, want %q", string(body1), body)
	}
	if mock.GetRequestCount() != 1 {
		t.Fatalf("Request count = %d, want 1", mock.GetRequestCount())
	}

	// Second request is served from cache
	resp2, err := c.Get(ctx, path)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if string(body2) != body {
		t.Errorf("Cached body = %q, want %q", string(body2), body)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Request count = %d, want 1 (second request cached)", mock.GetRequestCount())
	}
}

func TestGet_NotFoundPassthrough(t *testing.T) {
	mock := testutil.NewMockWikimedia()
	defer mock.Close()

	// Unconfigured path: the mock answers 404 like the real API
	c := newMockedClient(t, mock)

	resp, err := c.Get(context.Background(), "/metrics/pageviews/per-article/en.wikipedia/all-access/all-agents/Nonexistent/daily/2025070100/2025070300")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	// 404 is a result on this API, not an error
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.StatusCode)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("Request count = %d, want 1 (no retries for 404)", mock.GetRequestCount())
	}
}

func TestGet_ServerErrorRetriesAndExhausts(t *testing.T) {
	mock := testutil.NewMockWikimedia()
	defer mock.Close()

	path := "/metrics/pageviews/aggregate/en.wikipedia/all-access/all-agents/daily/2025070100/2025070300"
	mock.SetResponse(path, testutil.NewServerErrorResponse())

	c := newMockedClient(t, mock)

	_, err := c.Get(context.Background(), path)
	if err == nil {
		t.Fatal("Expected error for persistent 500, got nil")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Error = %v, want ErrRetryExhausted", err)
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("Request count = %d, want 3 (MaxAttempts)", mock.GetRequestCount())
	}
}

func TestGetWithTTL_OverridesCacheExpiry(t *testing.T) {
	mock := testutil.NewMockWikimedia()
	defer mock.Close()

	path := "/metrics/pageviews/top/de.wikipedia/all-access/2020/01/01"
	mock.SetResponse(path, testutil.NewHealthyResponse(
		testutil.TopBody("de.wikipedia", []testutil.TopEntry{
			{Article: "Hauptseite", Views: 50, Rank: 1},
		})))

	c := newMockedClient(t, mock)
	ctx := context.Background()

	resp, err := c.GetWithTTL(ctx, path, 12*time.Hour)
	if err != nil {
		t.Fatalf("GetWithTTL failed: %v", err)
	}
	resp.Body.Close()

	// The cached entry carries the override TTL, not the header default
	key := cache.CacheKey{Endpoint: path, QueryParams: url.Values{}}
	entry, err := c.GetCache().Get(ctx, key)
	if err != nil {
		t.Fatalf("Cache get failed: %v", err)
	}
	if ttl := entry.TTL(); ttl < 11*time.Hour {
		t.Errorf("Cached TTL = %v, want ~12h", ttl)
	}
}
