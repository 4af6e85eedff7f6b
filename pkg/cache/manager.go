package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/Sternrassler/zoho-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrCacheMiss is returned by Get when no fresh entry exists.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned by Get for entries that do not decode.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

const (
	// DefaultTTL is how long metadata stays cached unless configured otherwise.
	DefaultTTL = 5 * time.Minute

	// DefaultLoadTimeout bounds one shared load, independent of the callers.
	DefaultLoadTimeout = 30 * time.Second
)

// Config holds the cache settings.
type Config struct {
	// TTL of every entry written by EntryFromResponse.
	TTL time.Duration

	// LoadTimeout bounds a load started by Fetch.
	LoadTimeout time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{TTL: DefaultTTL, LoadTimeout: DefaultLoadTimeout}
}

// LoadFunc fetches a metadata response from the API after a miss.
type LoadFunc func(ctx context.Context) (*client.Response, error)

// Manager stores metadata responses in Redis, shared by every process
// using the same instance.
type Manager struct {
	redis       *redis.Client
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	loads       singleflight.Group
	logger      zerolog.Logger
}

// NewManager creates a cache manager. It panics on a nil Redis client.
func NewManager(redisClient *redis.Client, cfg Config) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	return &Manager{
		redis:       redisClient,
		ttl:         cfg.TTL,
		loadTimeout: cfg.LoadTimeout,
		now:         time.Now,
		logger:      logging.NewLogger("zoho-cache"),
	}
}

// TTL returns the configured entry lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Fetch returns the cached response for key, or calls load and caches its
// result. Concurrent misses on the same key share one load, which runs on a
// context detached from the callers and bounded by the load timeout; a caller
// giving up only detaches that caller. Redis failures are logged and fall
// through to load. hit reports whether Redis served the response.
func (m *Manager) Fetch(ctx context.Context, key CacheKey, load LoadFunc) (resp *client.Response, hit bool, err error) {
	entry, err := m.Get(ctx, key)
	switch {
	case err == nil:
		return entry.Response(), true, nil
	case !errors.Is(err, ErrCacheMiss):
		m.logger.Warn().Err(err).Str("key", key.String()).Msg("Metadata cache unavailable, loading from API")
	}

	ch := m.loads.DoChan(key.String(), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
		defer cancel()

		cacheLoads.WithLabelValues(key.Product).Inc()
		resp, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if err := m.Set(lctx, key, m.EntryFromResponse(key, resp)); err != nil {
			m.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache metadata")
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("wait for metadata %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*client.Response), false, nil
	}
}

// Get returns the entry stored for key, or ErrCacheMiss when it is absent
// or stale. Stale entries are removed.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheLookups.WithLabelValues(key.Product, lookupMiss).Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		cacheErrors.WithLabelValues(key.Product, "get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues(key.Product, "get").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, key, err)
	}

	now := m.now()
	if entry.IsExpired(now) {
		cacheLookups.WithLabelValues(key.Product, lookupExpired).Inc()
		_ = m.Delete(ctx, key)
		return nil, ErrCacheMiss
	}

	cacheLookups.WithLabelValues(key.Product, lookupHit).Inc()
	m.logger.Debug().Str("key", key.String()).Dur("age", entry.Age(now)).Msg("Metadata cache hit")
	return &entry, nil
}

// Set stores entry under key until its Expires time. Entries that are
// already stale are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL(m.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues(key.Product, "set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues(key.Product, "set").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	cacheWrittenBytes.WithLabelValues(key.Product).Add(float64(len(data)))
	return nil
}

// Delete removes the entry stored for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues(key.Product, "delete").Inc()
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Invalidate removes every cached entry of product and returns the number
// of deleted keys.
func (m *Manager) Invalidate(ctx context.Context, product string) (int, error) {
	pattern := CacheKey{Product: product}.String() + ":*"

	var keys []string
	iter := m.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues(product, "scan").Inc()
		return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := m.redis.Del(ctx, keys...).Result()
	if err != nil {
		cacheErrors.WithLabelValues(product, "delete").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}

	m.logger.Info().Str("product", product).Int64("deleted", n).Msg("Metadata cache invalidated")
	return int(n), nil
}
