package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a cached metadata response.
type CacheEntry struct {
	Product    string      `json:"product"`
	Org        string      `json:"org,omitempty"`
	Data       []byte      `json:"data"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	CachedAt   time.Time   `json:"cached_at"`

	// Expires is set once from the manager TTL; entries are never revalidated.
	Expires time.Time `json:"expires"`
}

// IsExpired reports whether the entry is stale at now.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time left until Expires, 0 once stale.
func (e *CacheEntry) TTL(now time.Time) time.Duration {
	if ttl := e.Expires.Sub(now); ttl > 0 {
		return ttl
	}
	return 0
}

func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}
