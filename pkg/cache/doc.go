// Package cache keeps short-lived copies of Zoho metadata responses in Redis.
//
// Metadata (module lists, field layouts, organization settings) changes
// rarely but is requested by every process that builds records, and each
// request counts against the per-minute API quota. Entries expire after a
// fixed TTL (DefaultTTL unless configured) and are never revalidated.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, cache.DefaultConfig())
//
//	key := cache.CacheKey{Product: "crm", Path: "/settings/modules"}
//	resp, hit, err := manager.Fetch(ctx, key, func(ctx context.Context) (*client.Response, error) {
//		return crm.Get(ctx, "/settings/modules", nil)
//	})
//
// Concurrent misses on one key inside a process share a single API call.
// Manager.Invalidate drops every entry of a product after a layout change.
//
// # Metrics
//
//   - zoho_cache_lookups_total{product,result}
//   - zoho_cache_loads_total{product}
//   - zoho_cache_written_bytes_total{product}
//   - zoho_cache_errors_total{product,operation}
package cache
