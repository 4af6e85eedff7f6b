package cache

import (
	"github.com/Sternrassler/zoho-client/pkg/client"
)

// EntryFromResponse wraps a successful API response for key. The entry
// expires one manager TTL from now.
func (m *Manager) EntryFromResponse(key CacheKey, resp *client.Response) *CacheEntry {
	now := m.now()
	return &CacheEntry{
		Product:    key.Product,
		Org:        key.Org,
		Data:       resp.Body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   now,
		Expires:    now.Add(m.ttl),
	}
}

// Response turns the entry back into an API response.
func (e *CacheEntry) Response() *client.Response {
	return &client.Response{
		StatusCode: e.StatusCode,
		Header:     e.Headers.Clone(),
		Body:       e.Data,
	}
}
