package zoho

import (
	"fmt"
	"net/http"
	"net/url"
)

// ProductConfig describes how one product is addressed and paged.
type ProductConfig struct {
	Product    Product
	Version    string
	Dialect    Dialect
	DataCenter string

	// BaseURL replaces the URL derived from Product, DataCenter and Version.
	BaseURL string

	// RecordsKey is the dotted path of the record array in list responses.
	// Empty means the last segment of the request path ("invoices").
	RecordsKey string

	// HasMoreKey is the dotted path of the "more records" flag, if any.
	HasMoreKey string

	// NextTokenKey is the dotted path of the next page token, if any.
	NextTokenKey string

	// Params are added to every request query.
	Params url.Values

	// Header is added to every request.
	Header http.Header
}

// DefaultProductConfig returns the layout of product in dataCenter.
func DefaultProductConfig(product Product, dataCenter string) ProductConfig {
	cfg := ProductConfig{Product: product, DataCenter: dataCenter}

	switch product {
	case CRM:
		cfg.Version = "v2"
		cfg.Dialect = DefaultPageDialect
		cfg.RecordsKey = "data"
		cfg.HasMoreKey = "info.more_records"
		cfg.NextTokenKey = "info.next_page_token"
	case Books:
		cfg.Version = "v3"
		cfg.Dialect = PageDialect{PageParam: "page", PerPageParam: "per_page"}
		cfg.HasMoreKey = "page_context.has_more_page"
	case People:
		cfg.Version = "v1"
		cfg.Dialect = OffsetDialect{FromParam: "sIndex", LimitParam: "limit", OneBased: true}
		cfg.RecordsKey = "response.result"
	case Desk:
		cfg.Version = "v1"
		cfg.Dialect = DefaultOffsetDialect
		cfg.RecordsKey = "data"
	}
	return cfg
}

// URL returns the product base URL.
func (c ProductConfig) URL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return BaseURL(c.Product, c.DataCenter, c.Version)
}

// WithOrganization scopes the config to an organization: Books takes the
// organization_id query parameter, Desk the orgId header. CRM and People
// are scoped by the token alone.
func (c ProductConfig) WithOrganization(id string) ProductConfig {
	if id == "" {
		return c
	}
	switch c.Product {
	case Books:
		c.Params = cloneValues(c.Params)
		c.Params.Set("organization_id", id)
	case Desk:
		c.Header = c.Header.Clone()
		if c.Header == nil {
			c.Header = http.Header{}
		}
		c.Header.Set("orgId", id)
	}
	return c
}

// Organization returns the organization the config is scoped to, if any.
func (c ProductConfig) Organization() string {
	if id := c.Params.Get("organization_id"); id != "" {
		return id
	}
	return c.Header.Get("orgId")
}

// Validate checks the configuration.
func (c ProductConfig) Validate() error {
	if c.Product == "" {
		return fmt.Errorf("product is required")
	}
	if c.Dialect == nil {
		return fmt.Errorf("pagination dialect is required")
	}
	if c.BaseURL == "" {
		if c.Version == "" {
			return fmt.Errorf("version is required")
		}
		if c.DataCenter != "" && !ValidDataCenter(c.DataCenter) {
			return fmt.Errorf("unknown data center %q", c.DataCenter)
		}
	}
	return nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
