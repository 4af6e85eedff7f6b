package zoho

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/Sternrassler/zoho-client/pkg/pagination"
)

// lookup walks a dotted key path ("info.more_records") through a JSON document.
func lookup(body []byte, key string) (json.RawMessage, bool) {
	cur := json.RawMessage(body)
	for _, part := range strings.Split(key, ".") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil, false
		}
		next, ok := obj[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// recordsKey returns the key of the record array for a list request on reqPath.
func (c ProductConfig) recordsKey(reqPath string) string {
	if c.RecordsKey != "" {
		return c.RecordsKey
	}
	return path.Base(strings.Trim(reqPath, "/"))
}

// decodePage extracts one page from a list response. A body without the
// record array (CRM answers 204 when nothing matches) is an empty page.
func decodePage[T any](body []byte, cfg ProductConfig, reqPath string) (pagination.Page[T], error) {
	var page pagination.Page[T]
	if len(body) == 0 {
		return page, nil
	}

	key := cfg.recordsKey(reqPath)
	if raw, ok := lookup(body, key); ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &page.Records); err != nil {
			return page, fmt.Errorf("decode records at %q: %w", key, err)
		}
	}

	if cfg.HasMoreKey != "" {
		if raw, ok := lookup(body, cfg.HasMoreKey); ok {
			var more bool
			if err := json.Unmarshal(raw, &more); err == nil {
				page.HasMore = &more
			}
		}
	}

	if cfg.NextTokenKey != "" {
		if raw, ok := lookup(body, cfg.NextTokenKey); ok {
			var token string
			if err := json.Unmarshal(raw, &token); err == nil {
				page.NextPageToken = token
			}
		}
	}

	return page, nil
}
