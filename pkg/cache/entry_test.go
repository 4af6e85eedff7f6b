package cache

import (
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/redis/go-redis/v9"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: now.Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: now.Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "expires now",
			expires: now,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTLAndAge(t *testing.T) {
	now := time.Now()
	entry := &CacheEntry{CachedAt: now.Add(-time.Minute), Expires: now.Add(4 * time.Minute)}

	if got := entry.TTL(now); got != 4*time.Minute {
		t.Errorf("TTL() = %v, want 4m", got)
	}
	if got := entry.Age(now); got != time.Minute {
		t.Errorf("Age() = %v, want 1m", got)
	}

	expired := &CacheEntry{Expires: now.Add(-time.Second)}
	if got := expired.TTL(now); got != 0 {
		t.Errorf("TTL() of expired entry = %v, want 0", got)
	}
}

func TestEntryFromResponse(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(rdb, Config{TTL: 2 * time.Minute})
	manager.now = func() time.Time { return now }

	resp := &client.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"modules":[]}`),
	}

	entry := manager.EntryFromResponse(CacheKey{Product: "books", Org: "10234695"}, resp)
	if entry.Product != "books" || entry.Org != "10234695" {
		t.Errorf("entry scope = %s/%s, want books/10234695", entry.Product, entry.Org)
	}
	if !entry.CachedAt.Equal(now) {
		t.Errorf("CachedAt = %v, want %v", entry.CachedAt, now)
	}
	if !entry.Expires.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("Expires = %v, want %v", entry.Expires, now.Add(2*time.Minute))
	}

	back := entry.Response()
	if back.StatusCode != http.StatusOK || string(back.Body) != `{"modules":[]}` {
		t.Errorf("Response() = %d %q", back.StatusCode, back.Body)
	}
	if back.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", back.Header.Get("Content-Type"))
	}
}
