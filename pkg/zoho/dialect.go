package zoho

import (
	"net/url"
	"strconv"

	"github.com/Sternrassler/zoho-client/pkg/pagination"
)

// Dialect writes a page cursor into the request query.
type Dialect interface {
	Apply(q url.Values, cursor pagination.Cursor, pageSize int)
}

// PageDialect is page-number pagination: page=N&per_page=S, or the opaque
// continuation token when the API issued one.
type PageDialect struct {
	PageParam    string
	PerPageParam string
	TokenParam   string
}

// DefaultPageDialect uses page, per_page and page_token.
var DefaultPageDialect = PageDialect{PageParam: "page", PerPageParam: "per_page", TokenParam: "page_token"}

// Apply implements Dialect. A token replaces the page number.
func (d PageDialect) Apply(q url.Values, cursor pagination.Cursor, pageSize int) {
	if cursor.PageToken != "" && d.TokenParam != "" {
		q.Set(d.TokenParam, cursor.PageToken)
		q.Del(d.PageParam)
	} else {
		q.Set(d.PageParam, strconv.Itoa(cursor.PageNumber(pageSize)))
	}
	q.Set(d.PerPageParam, strconv.Itoa(pageSize))
}

// OffsetDialect is offset pagination: from=O&limit=S.
type OffsetDialect struct {
	FromParam  string
	LimitParam string
	// OneBased shifts the first record index from 0 to 1.
	OneBased bool
}

// DefaultOffsetDialect uses from and limit, counting from 1.
var DefaultOffsetDialect = OffsetDialect{FromParam: "from", LimitParam: "limit", OneBased: true}

// Apply implements Dialect.
func (d OffsetDialect) Apply(q url.Values, cursor pagination.Cursor, pageSize int) {
	from := cursor.Offset
	if d.OneBased {
		from++
	}
	q.Set(d.FromParam, strconv.Itoa(from))
	q.Set(d.LimitParam, strconv.Itoa(pageSize))
}
