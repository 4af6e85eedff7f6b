package zoho

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/auth"
	"github.com/Sternrassler/zoho-client/pkg/cache"
	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/Sternrassler/zoho-client/pkg/logging"
	"github.com/Sternrassler/zoho-client/pkg/pagination"
	"github.com/Sternrassler/zoho-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

// Config holds the configuration of a Suite.
type Config struct {
	// DataCenter is the Zoho region ("com", "eu", "in", ...).
	DataCenter string

	// Credential is the OAuth client registration. Ignored when
	// TokenSource is set.
	Credential auth.Credential

	// TokenSource replaces the built-in token provider.
	TokenSource client.TokenSource

	// Redis optionally shares the access token, the rate limit state and
	// the metadata cache between processes.
	Redis *redis.Client

	// Pagination applies to every product client.
	Pagination pagination.Config

	// BooksOrganizationID and DeskOrgID scope Books and Desk calls.
	BooksOrganizationID string
	DeskOrgID           string

	HTTPClient *http.Client
	UserAgent  string

	// CacheTTL is the metadata cache lifetime (Redis only).
	CacheTTL time.Duration

	// BaseURLs overrides the API base URL per product.
	BaseURLs map[Product]string

	// AccountsURL overrides the token endpoint of DataCenter.
	AccountsURL string
}

// DefaultConfig returns a configuration for the com data center.
func DefaultConfig() Config {
	return Config{
		DataCenter: DefaultDataCenter,
		Pagination: pagination.DefaultConfig(),
		UserAgent:  "zoho-client/0.1.0",
		CacheTTL:   cache.DefaultTTL,
	}
}

// Suite bundles the clients of all products behind one token provider
// and one rate limit tracker.
type Suite struct {
	CRM    *Client
	Books  *Client
	People *Client
	Desk   *Client

	// Tokens is the token source shared by all clients.
	Tokens client.TokenSource

	// Provider is the built-in provider, nil when Config.TokenSource was set.
	Provider *auth.Provider

	Tracker *ratelimit.Tracker
	Cache   *cache.Manager
}

// NewSuite wires the product clients.
func NewSuite(cfg Config) (*Suite, error) {
	if cfg.DataCenter == "" {
		cfg.DataCenter = DefaultDataCenter
	}
	if !ValidDataCenter(cfg.DataCenter) {
		return nil, fmt.Errorf("unknown data center %q", cfg.DataCenter)
	}
	if cfg.Pagination == (pagination.Config{}) {
		cfg.Pagination = pagination.DefaultConfig()
	}

	s := &Suite{Tokens: cfg.TokenSource}

	if s.Tokens == nil {
		provider, err := newProvider(cfg)
		if err != nil {
			return nil, err
		}
		s.Tokens = provider
		s.Provider = provider
	}

	s.Tracker = ratelimit.NewTracker(cfg.Redis, logging.NewLogger("zoho-ratelimit"))
	if cfg.Redis != nil {
		s.Cache = cache.NewManager(cfg.Redis, cache.Config{TTL: cfg.CacheTTL})
	}

	for _, p := range Products {
		c, err := s.newClient(cfg, p)
		if err != nil {
			return nil, fmt.Errorf("%s client: %w", p, err)
		}
		switch p {
		case CRM:
			s.CRM = c
		case Books:
			s.Books = c
		case People:
			s.People = c
		case Desk:
			s.Desk = c
		}
	}

	return s, nil
}

// Client returns the client of product p, or nil for an unknown product.
func (s *Suite) Client(p Product) *Client {
	switch p {
	case CRM:
		return s.CRM
	case Books:
		return s.Books
	case People:
		return s.People
	case Desk:
		return s.Desk
	}
	return nil
}

func newProvider(cfg Config) (*auth.Provider, error) {
	oauthCfg := auth.DefaultOAuthConfig(cfg.DataCenter)
	if cfg.AccountsURL != "" {
		oauthCfg.TokenURL = cfg.AccountsURL
	}
	if cfg.HTTPClient != nil {
		oauthCfg.HTTPClient = cfg.HTTPClient
	}
	refresher, err := auth.NewOAuthRefresher(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("oauth refresher: %w", err)
	}

	authCfg := auth.DefaultConfig(cfg.Credential, refresher)
	if cfg.Redis != nil {
		authCfg.Store = auth.NewRedisStore(cfg.Redis, auth.StoreKey(cfg.Credential.ClientID))
	}

	provider, err := auth.New(authCfg)
	if err != nil {
		return nil, fmt.Errorf("token provider: %w", err)
	}
	return provider, nil
}

func (s *Suite) newClient(cfg Config, p Product) (*Client, error) {
	pc := DefaultProductConfig(p, cfg.DataCenter)
	pc.BaseURL = cfg.BaseURLs[p]
	switch p {
	case Books:
		pc = pc.WithOrganization(cfg.BooksOrganizationID)
	case Desk:
		pc = pc.WithOrganization(cfg.DeskOrgID)
	}

	dcfg := client.DefaultConfig(s.Tokens)
	dcfg.HTTPClient = cfg.HTTPClient
	if cfg.UserAgent != "" {
		dcfg.UserAgent = cfg.UserAgent
	}
	dcfg.Middleware = []client.Middleware{
		s.Tracker.Middleware(string(p)),
		client.LoggingMiddleware(logging.NewLogger("zoho-http")),
	}

	dispatcher, err := client.New(dcfg)
	if err != nil {
		return nil, err
	}

	engine, err := pagination.NewEngine(string(p), cfg.Pagination)
	if err != nil {
		return nil, err
	}

	c, err := NewClient(pc, dispatcher, engine)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		c.SetMetadataCache(s.Cache)
	}
	return c, nil
}
