// Package ratelimit implements shared throttle tracking for the Wikimedia
// pageview API. The API signals abusive request rates with 429 responses;
// this package records those in Redis so that all client processes back off
// together instead of each discovering the throttle on its own.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyLast429       = "pageviews:rate_limit:last_429"
	RedisKeyCooldownUntil = "pageviews:rate_limit:cooldown_until"
	RedisKeyLastUpdate    = "pageviews:rate_limit:last_update"
)

// Throttle behavior constants.
const (
	// DefaultCooldown is the cool-down applied after a 429 when the response
	// carries no Retry-After header.
	DefaultCooldown = 5 * time.Second

	// ThrottleWindow is how long after a 429 new requests are still slowed
	// down (1s sleep) even once the hard cool-down has passed.
	ThrottleWindow = 1 * time.Minute
)

// ThrottleState represents the current upstream throttle state.
// This state is shared across all client instances via Redis.
type ThrottleState struct {
	// Last429At is when the most recent 429 response was observed.
	Last429At time.Time `json:"last_429_at"`

	// CooldownUntil is the time before which no request may be sent.
	// Derived from the 429's Retry-After header, or DefaultCooldown.
	CooldownUntil time.Time `json:"cooldown_until"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// InCooldown returns true if requests must be blocked right now.
func (s *ThrottleState) InCooldown() bool {
	return time.Now().Before(s.CooldownUntil)
}

// RecentlyThrottled returns true if a 429 was seen within ThrottleWindow but
// the hard cool-down has already passed. Such requests are slowed, not blocked.
func (s *ThrottleState) RecentlyThrottled() bool {
	if s.Last429At.IsZero() || s.InCooldown() {
		return false
	}
	return time.Since(s.Last429At) < ThrottleWindow
}

// TimeUntilCooldownEnd returns the duration until requests may resume.
// Returns 0 if the cool-down has already passed.
func (s *ThrottleState) TimeUntilCooldownEnd() time.Duration {
	duration := time.Until(s.CooldownUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// IsStale returns true if the state data is older than the given duration.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
