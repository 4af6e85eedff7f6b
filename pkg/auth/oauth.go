package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTokenLifetime is assumed when the accounts server sends no expiry.
const DefaultTokenLifetime = time.Hour

// AccountsURL returns the token endpoint of the given data center
// ("com", "eu", "in", "com.au", "jp", ...).
func AccountsURL(dataCenter string) string {
	if dataCenter == "" {
		dataCenter = "com"
	}
	return fmt.Sprintf("https://accounts.zoho.%s/oauth/v2/token", dataCenter)
}

// OAuthConfig holds the refresher configuration.
type OAuthConfig struct {
	// TokenURL is the accounts server token endpoint.
	TokenURL string

	// HTTPClient is the underlying client; its Timeout bounds each attempt.
	HTTPClient *http.Client

	// RetryMax is the number of retries on network errors and 5xx.
	RetryMax int

	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultOAuthConfig returns the refresher configuration for a data center.
func DefaultOAuthConfig(dataCenter string) OAuthConfig {
	return OAuthConfig{
		TokenURL:     AccountsURL(dataCenter),
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}

// OAuthRefresher refreshes tokens with the OAuth 2.0 refresh_token grant.
type OAuthRefresher struct {
	client   *retryablehttp.Client
	tokenURL string
	now      func() time.Time
}

// NewOAuthRefresher creates a refresher.
func NewOAuthRefresher(cfg OAuthConfig) (*OAuthRefresher, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token url is required")
	}
	if _, err := url.ParseRequestURI(cfg.TokenURL); err != nil {
		return nil, fmt.Errorf("invalid token url: %w", err)
	}
	if cfg.RetryMax < 0 {
		return nil, fmt.Errorf("retry max must be >= 0 (got %d)", cfg.RetryMax)
	}

	rc := retryablehttp.NewClient()
	if cfg.HTTPClient != nil {
		rc.HTTPClient = cfg.HTTPClient
	}
	rc.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.CheckRetry = retryServerErrors
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger: log.With().Str("component", "zoho-oauth").Logger()}

	return &OAuthRefresher{
		client:   rc,
		tokenURL: cfg.TokenURL,
		now:      time.Now,
	}, nil
}

// tokenResponse is the accounts server reply. Rejections come back with
// status 200 and an "error" field.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	APIDomain    string `json:"api_domain"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresInSec int64  `json:"expires_in_sec"`
	Error        string `json:"error"`
}

// Refresh exchanges cred.RefreshToken for a new access token. A rejected
// refresh token yields a *client.AuthError; transport failures and 5xx
// responses that outlast the retries yield a retryable *client.APIError.
func (r *OAuthRefresher) Refresh(ctx context.Context, cred Credential) (Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Token{}, client.ClassifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, client.ClassifyTransport(fmt.Errorf("read token response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return Token{}, client.Classify(resp.StatusCode, resp.Header, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil && resp.StatusCode < 400 {
		return Token{}, &client.APIError{StatusCode: resp.StatusCode, Message: "malformed token response", Body: body, Err: err}
	}

	if tr.Error != "" || resp.StatusCode >= 400 {
		code := tr.Error
		if code == "" {
			code = http.StatusText(resp.StatusCode)
		}
		return Token{}, &client.AuthError{StatusCode: resp.StatusCode, Code: code, Message: "refresh token rejected: " + code}
	}

	if tr.AccessToken == "" {
		return Token{}, &client.APIError{StatusCode: resp.StatusCode, Message: "token response without access_token", Body: body}
	}

	lifetime := DefaultTokenLifetime
	switch {
	case tr.ExpiresInSec > 0:
		lifetime = time.Duration(tr.ExpiresInSec) * time.Second
	case tr.ExpiresIn > 0:
		lifetime = time.Duration(tr.ExpiresIn) * time.Second
	}

	return Token{
		AccessToken: tr.AccessToken,
		ExpiresAt:   r.now().Add(lifetime),
		APIDomain:   tr.APIDomain,
	}, nil
}

// retryServerErrors retries network errors and 5xx, never 4xx: a rejected
// refresh token stays rejected.
func retryServerErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return resp.StatusCode >= 500, nil
}

// leveledLogger routes retryablehttp logging to zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.logger.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.logger.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.logger.Trace().Fields(kv).Msg(msg) }
