package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle tracking.
var (
	throttleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pageviews_throttle_responses_total",
		Help: "Total number of 429 responses observed from the pageview API",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pageviews_rate_limit_blocks_total",
		Help: "Total number of requests blocked during a throttle cool-down",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pageviews_rate_limit_throttles_total",
		Help: "Total number of requests slowed down after a recent 429",
	})
)

// Tracker monitors upstream 429 responses and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new throttle tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current throttle state from Redis.
// Returns a zero (healthy) state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	last429, err := t.redis.Get(ctx, RedisKeyLast429).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last 429 timestamp: %w", err)
	}

	cooldownUntil, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get cooldown timestamp: %w", err)
	}

	lastUpdate, err := t.redis.Get(ctx, RedisKeyLastUpdate).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	// No state in Redis means no 429 was ever observed
	if err == redis.Nil && last429 == 0 {
		t.logger.Debug().Msg("No throttle state in Redis, returning healthy state")
		return &ThrottleState{}, nil
	}

	state := &ThrottleState{}
	if last429 > 0 {
		state.Last429At = time.Unix(last429, 0)
	}
	if cooldownUntil > 0 {
		state.CooldownUntil = time.Unix(cooldownUntil, 0)
	}
	if lastUpdate > 0 {
		state.LastUpdate = time.Unix(lastUpdate, 0)
	}

	return state, nil
}

// RecordThrottle records a 429 response in Redis so all client processes
// back off. The cool-down honors the Retry-After header when present.
func (t *Tracker) RecordThrottle(ctx context.Context, headers http.Header) error {
	throttleResponsesTotal.Inc()

	cooldown := DefaultCooldown
	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			cooldown = time.Duration(seconds) * time.Second
		}
	}

	now := time.Now()
	cooldownUntil := now.Add(cooldown)

	// Store atomically; keys expire once the throttle window is long past
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLast429, now.Unix(), 2*ThrottleWindow)
	pipe.Set(ctx, RedisKeyCooldownUntil, cooldownUntil.Unix(), 2*ThrottleWindow)
	pipe.Set(ctx, RedisKeyLastUpdate, now.Unix(), 2*ThrottleWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}

	t.logger.Warn().
		Time("cooldown_until", cooldownUntil).
		Dur("cooldown", cooldown).
		Msg("Upstream 429 recorded - requests will be blocked during cool-down")

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on current
// throttle state. Returns false during an active cool-down. Returns true but
// sleeps briefly when a 429 was seen recently.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get throttle state: %w", err)
	}

	// Cool-down active: block the request
	if state.InCooldown() {
		waitDuration := state.TimeUntilCooldownEnd()

		t.logger.Error().
			Dur("wait_duration", waitDuration).
			Msg("Throttle cool-down active - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	// Recent 429: slow down (1 second sleep)
	if state.RecentlyThrottled() {
		t.logger.Warn().
			Time("last_429_at", state.Last429At).
			Msg("Recent 429 from upstream - throttling request")

		rateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	// Healthy: allow request
	return true, nil
}
