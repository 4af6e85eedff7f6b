// Package client provides the request dispatcher shared by every Zoho
// product client: auth header injection, error classification and the single
// silent retry after a token refresh.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for dispatched requests.
var (
	zohoRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_requests_total",
		Help: "Total Zoho API requests by product and status",
	}, []string{"product", "status"})

	zohoRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoho_request_duration_seconds",
		Help:    "Zoho API call duration in seconds by product, including the refresh retry",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"product"})

	zohoErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_errors_total",
		Help: "Total Zoho API errors returned to callers by class",
	}, []string{"class"})

	zohoAuthRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_auth_retries_total",
		Help: "Total requests retried after a 401 and token refresh",
	}, []string{"product"})
)

const (
	// DefaultAuthScheme is the Authorization scheme Zoho expects for OAuth tokens.
	DefaultAuthScheme = "Zoho-oauthtoken"

	// DefaultTimeout bounds every single HTTP call.
	DefaultTimeout = 30 * time.Second

	maxResponseBodyBytes = 32 << 20
)

// TokenSource supplies access tokens to the dispatcher.
// *auth.Provider is the production implementation.
type TokenSource interface {
	// GetValidAccessToken returns a token that is not about to expire.
	GetValidAccessToken(ctx context.Context) (string, error)

	// RenewRejected refreshes after the server rejected the given token.
	RenewRejected(ctx context.Context, rejected string) (string, error)
}

// Dispatcher executes single API calls.
type Dispatcher struct {
	tokens    TokenSource
	transport RoundTripFunc
	config    Config
	logger    zerolog.Logger
}

// Config holds the dispatcher configuration.
type Config struct {
	// Tokens supplies the access token for every call (REQUIRED).
	Tokens TokenSource

	// HTTPClient overrides the default client. Its Timeout is left untouched.
	HTTPClient *http.Client

	// AuthScheme is the Authorization header scheme.
	AuthScheme string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout per HTTP call when HTTPClient is not set.
	Timeout time.Duration

	// Middleware wraps the transport call, the first entry outermost.
	Middleware []Middleware
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig(tokens TokenSource) Config {
	return Config{
		Tokens:     tokens,
		AuthScheme: DefaultAuthScheme,
		UserAgent:  "zoho-client/0.1.0",
		Timeout:    DefaultTimeout,
	}
}

// New creates a new Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	d := &Dispatcher{
		tokens: cfg.Tokens,
		config: cfg,
		logger: log.With().Str("component", "zoho-dispatcher").Logger(),
	}
	d.transport = chain(httpClient.Do, cfg.Middleware)

	return d, nil
}

// Execute performs one API call. A 401 triggers exactly one token refresh
// and one retry; every other failure is returned to the caller as a
// classified error.
func (d *Dispatcher) Execute(ctx context.Context, rc RequestContext) (*Response, error) {
	if err := rc.Validate(); err != nil {
		zohoErrorsTotal.WithLabelValues(string(ErrorClassValidation)).Inc()
		return nil, err
	}

	startTime := time.Now()
	defer func() {
		zohoRequestDuration.WithLabelValues(rc.Product).Observe(time.Since(startTime).Seconds())
	}()

	token, err := d.tokens.GetValidAccessToken(ctx)
	if err != nil {
		d.recordFailure(rc, err)
		return nil, fmt.Errorf("obtain access token: %w", err)
	}

	resp, err := d.attempt(ctx, rc, token)

	var authErr *AuthError
	if errors.As(err, &authErr) {
		d.logger.Info().
			Str("product", rc.Product).
			Str("path", rc.Path).
			Msg("Access token rejected, refreshing and retrying once")
		zohoAuthRetriesTotal.WithLabelValues(rc.Product).Inc()

		token, err = d.tokens.RenewRejected(ctx, token)
		if err != nil {
			d.recordFailure(rc, err)
			return nil, fmt.Errorf("refresh after 401: %w", err)
		}

		resp, err = d.attempt(ctx, rc, token)
	}

	if err != nil {
		d.recordFailure(rc, err)
		return nil, err
	}

	return resp, nil
}

// attempt builds a fresh request from rc and performs it once.
func (d *Dispatcher) attempt(ctx context.Context, rc RequestContext, token string) (*Response, error) {
	req, err := rc.NewRequest(ctx)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", d.config.AuthScheme+" "+token)
	req.Header.Set("Accept", "application/json")
	if len(rc.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.config.UserAgent != "" {
		req.Header.Set("User-Agent", d.config.UserAgent)
	}

	d.logger.Debug().
		Str("product", rc.Product).
		Str("method", req.Method).
		Str("path", rc.Path).
		Msg("Executing Zoho request")

	httpResp, err := d.transport(req)
	if err != nil {
		zohoRequestsTotal.WithLabelValues(rc.Product, "network_error").Inc()
		return nil, ClassifyTransport(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodyBytes))
	if err != nil {
		zohoRequestsTotal.WithLabelValues(rc.Product, "network_error").Inc()
		return nil, ClassifyTransport(fmt.Errorf("read response body: %w", err))
	}

	zohoRequestsTotal.WithLabelValues(rc.Product, strconv.Itoa(httpResp.StatusCode)).Inc()

	if classified := Classify(httpResp.StatusCode, httpResp.Header, body); classified != nil {
		d.logger.Warn().
			Str("product", rc.Product).
			Str("path", rc.Path).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(ClassOf(classified))).
			Msg("Zoho request error")
		return nil, classified
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

func (d *Dispatcher) recordFailure(rc RequestContext, err error) {
	class := ClassOf(err)
	if class == "" {
		class = "unclassified"
	}
	zohoErrorsTotal.WithLabelValues(string(class)).Inc()

	if class == ErrorClassAuth {
		d.logger.Error().Err(err).Str("product", rc.Product).Msg("Zoho authorization failed")
	}
}
