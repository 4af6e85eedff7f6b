package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/zoho-client/pkg/cache"
	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/Sternrassler/zoho-client/pkg/pagination"
	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Executor performs single API calls. *client.Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, rc client.RequestContext) (*client.Response, error)
}

// ListOptions are the parameters of a list call. Paging fields drive the
// pagination engine; the tagged fields are sent as query parameters.
type ListOptions struct {
	PageSize    int    `url:"-"`
	MaxRecords  int    `url:"-"`
	StartOffset int    `url:"-"`
	PageToken   string `url:"-"`

	Fields    []string `url:"fields,comma,omitempty"`
	SortBy    string   `url:"sort_by,omitempty"`
	SortOrder string   `url:"sort_order,omitempty"`

	// Extra holds product specific filters (cvid, status, departmentId, ...).
	Extra url.Values `url:"-"`
}

// values encodes the query part of the options.
func (o ListOptions) values() (url.Values, error) {
	v, err := query.Values(o)
	if err != nil {
		return nil, fmt.Errorf("encode list options: %w", err)
	}
	for key, vals := range o.Extra {
		for _, val := range vals {
			v.Add(key, val)
		}
	}
	return v, nil
}

// Client is the API client of one Zoho product.
type Client struct {
	config   ProductConfig
	exec     Executor
	engine   *pagination.Engine
	metadata *cache.Manager
	logger   zerolog.Logger
}

// NewClient creates a product client.
func NewClient(cfg ProductConfig, exec Executor, engine *pagination.Engine) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pagination engine is required")
	}
	return &Client{
		config: cfg,
		exec:   exec,
		engine: engine,
		logger: log.With().Str("component", "zoho-client").Str("product", string(cfg.Product)).Logger(),
	}, nil
}

// SetMetadataCache enables caching of Metadata calls.
func (c *Client) SetMetadataCache(m *cache.Manager) {
	c.metadata = m
}

// Product returns the product the client is bound to.
func (c *Client) Product() Product {
	return c.config.Product
}

// Config returns the product configuration.
func (c *Client) Config() ProductConfig {
	return c.config
}

// Do performs one call. body, when not nil, is sent as JSON.
func (c *Client) Do(ctx context.Context, method, path string, q url.Values, body any) (*client.Response, error) {
	rc, err := c.request(method, path, q, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.exec.Execute(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", c.config.Product, method, path, err)
	}
	return resp, nil
}

// Get fetches a single resource.
func (c *Client) Get(ctx context.Context, path string, q url.Values) (*client.Response, error) {
	return c.Do(ctx, http.MethodGet, path, q, nil)
}

// Create posts a new resource.
func (c *Client) Create(ctx context.Context, path string, body any) (*client.Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Update replaces a resource.
func (c *Client) Update(ctx context.Context, path string, body any) (*client.Response, error) {
	return c.Do(ctx, http.MethodPut, path, nil, body)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, path string, q url.Values) (*client.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, q, nil)
}

// List pages through a list endpoint and returns the raw records.
func (c *Client) List(ctx context.Context, path string, opts ListOptions) (*pagination.Result[json.RawMessage], error) {
	return ListInto[json.RawMessage](ctx, c, path, opts)
}

// ListInto pages through a list endpoint, decoding each record into T.
// On error the result holds the records collected so far.
func ListInto[T any](ctx context.Context, c *Client, path string, opts ListOptions) (*pagination.Result[T], error) {
	base, err := opts.values()
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, cursor pagination.Cursor, pageSize int) (pagination.Page[T], error) {
		q := cloneValues(base)
		c.config.Dialect.Apply(q, cursor, pageSize)

		resp, err := c.Get(ctx, path, q)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		return decodePage[T](resp.Body, c.config, path)
	}

	req := pagination.Request{
		PageSize:    opts.PageSize,
		MaxRecords:  opts.MaxRecords,
		StartOffset: opts.StartOffset,
		PageToken:   opts.PageToken,
	}
	return pagination.Paginate(ctx, c.engine, req, fetch)
}

// Metadata fetches a rarely changing resource (module list, field layout,
// organization settings), served from the metadata cache when configured.
func (c *Client) Metadata(ctx context.Context, path string, q url.Values) (*client.Response, error) {
	if c.metadata == nil {
		return c.Get(ctx, path, q)
	}

	key := cache.CacheKey{Product: string(c.config.Product), Path: path, Query: q, Org: c.config.Organization()}

	resp, hit, err := c.metadata.Fetch(ctx, key, func(ctx context.Context) (*client.Response, error) {
		return c.Get(ctx, path, q)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		c.logger.Debug().Str("path", path).Msg("Metadata served from cache")
	}
	return resp, nil
}

// request builds the RequestContext of one call.
func (c *Client) request(method, path string, q url.Values, body any) (client.RequestContext, error) {
	rc := client.RequestContext{
		Product:    string(c.config.Product),
		BaseURL:    c.config.URL(),
		DataCenter: c.config.DataCenter,
		Method:     method,
		Path:       path,
		Header:     c.config.Header.Clone(),
	}

	if len(c.config.Params) > 0 || len(q) > 0 {
		merged := cloneValues(c.config.Params)
		for key, vals := range q {
			merged[key] = append([]string(nil), vals...)
		}
		rc.Query = merged
	}

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return rc, &client.ValidationError{Field: "body", Message: err.Error()}
		}
		rc.Body = data
	}
	return rc, nil
}
