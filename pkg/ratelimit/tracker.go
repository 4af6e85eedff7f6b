package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	zohoRateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zoho_rate_limit_remaining",
		Help: "Calls remaining in the current Zoho rate limit window by product",
	}, []string{"product"})

	zohoRateLimitHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_rate_limit_hits_total",
		Help: "Total 429 responses received by product",
	}, []string{"product"})

	zohoRateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_rate_limit_blocks_total",
		Help: "Total requests held back locally while a product was blocked",
	}, []string{"product"})
)

// Tracker records 429 blocks per product and gates requests while blocked.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	states map[string]*State
}

// NewTracker creates a new rate limit tracker. redisClient may be nil, in
// which case the state is kept in process.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
		states: make(map[string]*State),
	}
}

// SetClock replaces the time source (for testing).
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// GetState returns the current state of product. A product without recorded
// state is unblocked with an unknown quota.
func (t *Tracker) GetState(ctx context.Context, product string) (*State, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if s, ok := t.states[product]; ok {
			cp := *s
			t.expireQuota(&cp)
			return &cp, nil
		}
		return &State{Product: product, Remaining: RemainingUnknown}, nil
	}

	state := &State{Product: product, Remaining: RemainingUnknown}

	blockedUntil, err := t.redis.Get(ctx, RedisKey(product, redisSuffixBlockedUntil)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}
	if err == nil {
		state.BlockedUntil = time.UnixMilli(blockedUntil)
	}

	remaining, err := t.redis.Get(ctx, RedisKey(product, redisSuffixRemaining)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get remaining: %w", err)
	}
	if err == nil {
		state.Remaining = remaining
	}

	lastUpdate, err := t.redis.Get(ctx, RedisKey(product, redisSuffixLastUpdate)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}
	if err == nil {
		state.LastUpdate = time.UnixMilli(lastUpdate)
	}

	t.expireQuota(state)
	return state, nil
}

// RecordRateLimit blocks product for wait from now. A non-positive wait only
// counts the hit.
func (t *Tracker) RecordRateLimit(ctx context.Context, product string, wait time.Duration) error {
	now := t.now()
	until := now.Add(wait)

	zohoRateLimitHitsTotal.WithLabelValues(product).Inc()
	if wait <= 0 {
		return nil
	}
	t.logger.Warn().
		Str("product", product).
		Dur("retry_after", wait).
		Time("blocked_until", until).
		Msg("Zoho rate limit hit, blocking product")

	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		s := t.stateLocked(product)
		if until.After(s.BlockedUntil) {
			s.BlockedUntil = until
		}
		s.LastUpdate = now
		return nil
	}

	blockedKey := RedisKey(product, redisSuffixBlockedUntil)
	if current, err := t.redis.Get(ctx, blockedKey).Int64(); err == nil && current >= until.UnixMilli() {
		// another process already holds a longer block
		return t.redis.Set(ctx, RedisKey(product, redisSuffixLastUpdate), now.UnixMilli(), 0).Err()
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, blockedKey, until.UnixMilli(), wait)
	pipe.Set(ctx, RedisKey(product, redisSuffixLastUpdate), now.UnixMilli(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit block in redis: %w", err)
	}
	return nil
}

// UpdateFromResponse records the outcome of one response: the quota header
// when present, and a block when the status is 429.
func (t *Tracker) UpdateFromResponse(ctx context.Context, product string, status int, headers http.Header) error {
	if status == http.StatusTooManyRequests {
		if err := t.RecordRateLimit(ctx, product, client.ParseRetryAfter(headers.Get("Retry-After"))); err != nil {
			return err
		}
	}

	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	zohoRateLimitRemaining.WithLabelValues(product).Set(float64(remain))
	now := t.now()

	if t.redis == nil {
		t.mu.Lock()
		s := t.stateLocked(product)
		s.Remaining = remain
		s.LastUpdate = now
		t.mu.Unlock()
	} else {
		pipe := t.redis.Pipeline()
		pipe.Set(ctx, RedisKey(product, redisSuffixRemaining), remain, 0)
		pipe.Set(ctx, RedisKey(product, redisSuffixLastUpdate), now.UnixMilli(), 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store rate limit state in redis: %w", err)
		}
	}

	if quota := (State{Product: product, Remaining: remain, LastUpdate: now}); quota.IsLow() {
		t.logger.Warn().
			Str("product", product).
			Int("remaining", remain).
			Str("limit", headers.Get(HeaderLimit)).
			Msg("Zoho rate limit quota running low")
	}
	return nil
}

// ShouldAllowRequest returns 0 when a request to product may be sent, or
// the wait until the current block ends.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, product string) (time.Duration, error) {
	state, err := t.GetState(ctx, product)
	if err != nil {
		return 0, fmt.Errorf("get rate limit state: %w", err)
	}
	return state.TimeUntilUnblocked(t.now()), nil
}

// Middleware gates requests of product while it is blocked and records
// every response. A blocked request fails fast with a *client.RateLimitError
// without reaching the network. Redis failures let the request through.
func (t *Tracker) Middleware(product string) client.Middleware {
	return func(next client.RoundTripFunc) client.RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()

			wait, err := t.ShouldAllowRequest(ctx, product)
			if err != nil {
				t.logger.Warn().Err(err).Str("product", product).Msg("Rate limit state unavailable, allowing request")
			} else if wait > 0 {
				zohoRateLimitBlocksTotal.WithLabelValues(product).Inc()
				t.logger.Debug().
					Str("product", product).
					Dur("wait", wait).
					Msg("Product blocked by rate limit, failing fast")
				return nil, &client.RateLimitError{
					StatusCode: http.StatusTooManyRequests,
					RetryAfter: wait,
					Message:    "blocked locally after a previous 429",
				}
			}

			resp, err := next(req)
			if err != nil {
				return resp, err
			}

			if err := t.UpdateFromResponse(ctx, product, resp.StatusCode, resp.Header); err != nil {
				t.logger.Warn().Err(err).Str("product", product).Msg("Failed to update rate limit state")
			}
			return resp, nil
		}
	}
}

// expireQuota drops a quota reading older than QuotaWindow.
func (t *Tracker) expireQuota(s *State) {
	if s.Remaining != RemainingUnknown && s.IsStale(t.now(), QuotaWindow) {
		s.Remaining = RemainingUnknown
	}
}

func (t *Tracker) stateLocked(product string) *State {
	s, ok := t.states[product]
	if !ok {
		s = &State{Product: product, Remaining: RemainingUnknown}
		t.states[product] = s
	}
	return s
}
