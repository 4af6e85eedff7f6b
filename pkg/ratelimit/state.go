// Package ratelimit tracks Zoho rate limits per product and gates requests
// while a product is blocked after a 429.
//
// State lives in Redis when a client is configured, so that every process
// sharing the same Zoho organization honors the same block. Without Redis
// the state is kept in process.
package ratelimit

import (
	"fmt"
	"time"
)

// Redis key layout for per-product rate limit state.
const (
	redisKeyPrefix          = "zoho:rate_limit:"
	redisSuffixBlockedUntil = ":blocked_until"
	redisSuffixRemaining    = ":remaining"
	redisSuffixLastUpdate   = ":last_update"
)

// Response headers Zoho sends with the per-window quota.
const (
	HeaderRemaining = "X-Ratelimit-Remaining"
	HeaderLimit     = "X-Ratelimit-Limit"
)

// LowRemainingThreshold logs a warning when fewer calls remain in the window.
const LowRemainingThreshold = 10

// QuotaWindow is how long an X-Ratelimit-Remaining reading stays meaningful.
// Older readings are reported as RemainingUnknown.
const QuotaWindow = time.Minute

// RemainingUnknown marks a state for which no quota header was seen yet.
const RemainingUnknown = -1

// RedisKey returns the Redis key of one state field for product.
func RedisKey(product, suffix string) string {
	return fmt.Sprintf("%s%s%s", redisKeyPrefix, product, suffix)
}

// State is the rate limit state of one product.
type State struct {
	Product string `json:"product"`

	// Remaining is the quota left in the current window, RemainingUnknown
	// when no header was seen.
	Remaining int `json:"remaining"`

	// BlockedUntil is the end of the wait requested by the last 429.
	BlockedUntil time.Time `json:"blocked_until"`

	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked reports whether requests must be held back at now.
func (s *State) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilUnblocked returns the remaining block, or 0 when not blocked.
func (s *State) TimeUntilUnblocked(now time.Time) time.Duration {
	if !s.IsBlocked(now) {
		return 0
	}
	return s.BlockedUntil.Sub(now)
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// IsLow reports whether the known quota is below LowRemainingThreshold.
func (s *State) IsLow() bool {
	return s.Remaining != RemainingUnknown && s.Remaining < LowRemainingThreshold
}
