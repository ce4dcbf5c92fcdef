// Package testutil provides testing utilities for the pageview API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock API endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockWikimedia is a configurable mock Wikimedia Analytics REST server.
// Besides per-path handlers it tracks request counts, request arrival
// order, and the in-flight high-water mark, which batch-query tests use
// to verify the concurrency bound.
type MockWikimedia struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	RequestOrder []string
	inFlight     int
	maxInFlight  int
}

// NewMockWikimedia creates a new mock API server.
func NewMockWikimedia() *MockWikimedia {
	mock := &MockWikimedia{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestOrder = append(mock.RequestOrder, r.URL.Path)
		mock.inFlight++
		if mock.inFlight > mock.maxInFlight {
			mock.maxInFlight = mock.inFlight
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockWikimedia) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockWikimedia) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockWikimedia) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestOrder = nil
	m.maxInFlight = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockWikimedia) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockWikimedia) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		// Add delay if specified
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		// Set headers
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		// Write status and body
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockWikimedia) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetRequestOrder returns the request paths in arrival order.
func (m *MockWikimedia) GetRequestOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	order := make([]string, len(m.RequestOrder))
	copy(order, m.RequestOrder)
	return order
}

// GetMaxInFlight returns the highest number of simultaneously in-flight
// requests observed since the last Reset.
func (m *MockWikimedia) GetMaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// defaultHandler responds like the real API does for unknown data: 404.
func (m *MockWikimedia) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(NotFoundBody()))
}

// ViewPoint is one time bucket of a mocked timeseries body.
type ViewPoint struct {
	Timestamp string
	Views     int64
}

// ArticleItemsBody builds a per-article endpoint response body.
func ArticleItemsBody(project, article string, points []ViewPoint) string {
	type item struct {
		Project   string `json:"project"`
		Article   string `json:"article"`
		Timestamp string `json:"timestamp"`
		Views     int64  `json:"views"`
	}
	items := make([]item, 0, len(points))
	for _, p := range points {
		items = append(items, item{Project: project, Article: article, Timestamp: p.Timestamp, Views: p.Views})
	}
	body, _ := json.Marshal(map[string]interface{}{"items": items})
	return string(body)
}

// AggregateItemsBody builds an aggregate endpoint response body.
func AggregateItemsBody(project string, points []ViewPoint) string {
	type item struct {
		Project   string `json:"project"`
		Timestamp string `json:"timestamp"`
		Views     int64  `json:"views"`
	}
	items := make([]item, 0, len(points))
	for _, p := range points {
		items = append(items, item{Project: project, Timestamp: p.Timestamp, Views: p.Views})
	}
	body, _ := json.Marshal(map[string]interface{}{"items": items})
	return string(body)
}

// TopEntry is one ranked article of a mocked top-articles body.
type TopEntry struct {
	Article string `json:"article"`
	Views   int64  `json:"views"`
	Rank    int    `json:"rank,omitempty"`
}

// TopBody builds a top-articles endpoint response body.
func TopBody(project string, articles []TopEntry) string {
	body, _ := json.Marshal(map[string]interface{}{
		"items": []map[string]interface{}{
			{"project": project, "articles": articles},
		},
	})
	return string(body)
}

// NotFoundBody returns the API's standard not-found error body.
func NotFoundBody() string {
	return `{"type":"https://mediawiki.org/wiki/HyperSwitch/errors/not_found","title":"Not found.","method":"get","status":404}`
}

// NewHealthyResponse creates a standard 200 OK response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 response with the API's error body.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       NotFoundBody(),
	}
}

// NewThrottleResponse creates a 429 Too Many Requests response.
func NewThrottleResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"type":"https://mediawiki.org/wiki/HyperSwitch/errors/request_rate_exceeded","title":"Too many requests","status":429}`,
		Headers: map[string]string{
			"Retry-After": fmt.Sprintf("%d", retryAfterSeconds),
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"type":"https://mediawiki.org/wiki/HyperSwitch/errors/server_error","title":"Internal error","status":500}`,
	}
}
