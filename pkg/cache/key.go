package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached pageview API response.
// The pageview API encodes all request parameters in the URL path, so the
// endpoint path alone usually identifies a response; QueryParams is kept for
// completeness.
type CacheKey struct {
	// Endpoint is the API endpoint path
	// (e.g. "/metrics/pageviews/top/en.wikipedia/all-access/2026/08/30")
	Endpoint string

	// QueryParams are the query parameters, if any
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: pageviews:endpoint:query1=val1:query2=val2
//
// Example:
//
//	pageviews:metrics/pageviews/top/en.wikipedia/all-access/2026/08/30
func (k CacheKey) String() string {
	parts := []string{"pageviews"}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
