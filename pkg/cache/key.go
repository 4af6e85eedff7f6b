package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies one cached metadata response.
type CacheKey struct {
	// Product is the Zoho product (crm, books, people, desk)
	Product string

	// Path is the request path relative to the product base URL
	Path string

	// Query are the query parameters (e.g. {"module": "Leads"})
	Query url.Values

	// Org separates organizations sharing one Redis (Books organization_id, Desk orgId)
	Org string
}

// String generates a deterministic cache key string.
// Format: zoho:cache:product:path:query1=val1:org=123
//
// Example:
//
//	zoho:cache:crm:settings/fields:module=Leads
func (k CacheKey) String() string {
	parts := []string{"zoho", "cache", k.Product}

	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}

	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.Query[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	if k.Org != "" {
		parts = append(parts, "org="+k.Org)
	}

	return strings.Join(parts, ":")
}
