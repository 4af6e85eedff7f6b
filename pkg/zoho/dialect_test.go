package zoho

import (
	"net/url"
	"testing"

	"github.com/Sternrassler/zoho-client/pkg/pagination"
)

func TestDialects_Apply(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		cursor   pagination.Cursor
		pageSize int
		want     url.Values
	}{
		{
			name:     "page first page",
			dialect:  DefaultPageDialect,
			cursor:   pagination.Cursor{},
			pageSize: 200,
			want:     url.Values{"page": {"1"}, "per_page": {"200"}},
		},
		{
			name:     "page third page",
			dialect:  DefaultPageDialect,
			cursor:   pagination.Cursor{Offset: 400},
			pageSize: 200,
			want:     url.Values{"page": {"3"}, "per_page": {"200"}},
		},
		{
			name:     "page token replaces number",
			dialect:  DefaultPageDialect,
			cursor:   pagination.Cursor{Offset: 400, PageToken: "tok"},
			pageSize: 200,
			want:     url.Values{"page_token": {"tok"}, "per_page": {"200"}},
		},
		{
			name:     "page dialect without token param ignores token",
			dialect:  PageDialect{PageParam: "page", PerPageParam: "per_page"},
			cursor:   pagination.Cursor{Offset: 50, PageToken: "tok"},
			pageSize: 25,
			want:     url.Values{"page": {"3"}, "per_page": {"25"}},
		},
		{
			name:     "offset one based",
			dialect:  DefaultOffsetDialect,
			cursor:   pagination.Cursor{Offset: 50},
			pageSize: 50,
			want:     url.Values{"from": {"51"}, "limit": {"50"}},
		},
		{
			name:     "offset zero based",
			dialect:  OffsetDialect{FromParam: "start", LimitParam: "count"},
			cursor:   pagination.Cursor{Offset: 50},
			pageSize: 50,
			want:     url.Values{"start": {"50"}, "count": {"50"}},
		},
		{
			name:     "people sIndex",
			dialect:  DefaultProductConfig(People, "com").Dialect,
			cursor:   pagination.Cursor{},
			pageSize: 200,
			want:     url.Values{"sIndex": {"1"}, "limit": {"200"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			tt.dialect.Apply(q, tt.cursor, tt.pageSize)
			if q.Encode() != tt.want.Encode() {
				t.Errorf("query = %q, want %q", q.Encode(), tt.want.Encode())
			}
		})
	}
}

func TestPageDialect_TokenClearsStalePage(t *testing.T) {
	q := url.Values{"page": {"2"}}
	DefaultPageDialect.Apply(q, pagination.Cursor{PageToken: "next"}, 100)

	if q.Has("page") {
		t.Errorf("page should be removed when a token is used, got %q", q.Encode())
	}
}
