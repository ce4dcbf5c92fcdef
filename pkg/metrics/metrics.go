// Package metrics provides the centralized Prometheus metrics registry for the
// pageviews client. All metrics are defined in their respective packages
// (client, cache, ratelimit, pageviews) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pageviews client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pageviews_throttle_responses_total (Counter): 429 responses observed from the API
//   - pageviews_rate_limit_blocks_total (Counter): Requests blocked during a throttle cool-down
//   - pageviews_rate_limit_throttles_total (Counter): Requests slowed down after a recent 429
//
// Cache Metrics (pkg/cache):
//   - pageviews_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - pageviews_cache_misses_total (Counter): Cache misses
//   - pageviews_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - pageviews_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - pageviews_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - pageviews_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - pageviews_errors_total{class} (Counter): Errors by class (not_found, client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - pageviews_retries_total{error_class} (Counter): Retry attempts by error class
//   - pageviews_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - pageviews_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Batch Metrics (pkg/pageviews):
//   - pageviews_batch_entities_total{outcome} (Counter): Fan-out entities by outcome (ok, not_found, error)
//   - pageviews_batch_duration_seconds (Histogram): Duration of a full fan-out call
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pageviews_cache_hits_total[5m])) /
//   (sum(rate(pageviews_cache_hits_total[5m])) + sum(rate(pageviews_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(pageviews_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(pageviews_request_duration_seconds_bucket[5m]))
//
//   # Share of entities failing inside batch calls
//   sum(rate(pageviews_batch_entities_total{outcome="error"}[5m])) /
//   sum(rate(pageviews_batch_entities_total[5m]))
