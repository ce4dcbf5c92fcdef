// Package cache provides pageview API response caching with a Redis backend.
//
// Pageview counts for closed time buckets are immutable upstream: once a day
// or month has passed, its count never changes. The cache exploits this by
// letting callers pass a long TTL for fully historical date ranges, while
// ranges that touch the current bucket get a short TTL.
//
// Features:
//
// - Automatic TTL management (caller override or Expires header or default)
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.CacheKey{
//		Endpoint: "/metrics/pageviews/top/en.wikipedia/all-access/2026/08/30",
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the API
//	}
//
// # HTTP Response Caching
//
//	// Convert HTTP response to cache entry
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//
//	// Store in cache
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - pageviews_cache_hits_total{layer="redis"} - Cache hits
//   - pageviews_cache_misses_total - Cache misses
//   - pageviews_cache_size_bytes{layer="redis"} - Cache size
//   - pageviews_cache_errors_total{operation} - Cache operation errors
package cache
