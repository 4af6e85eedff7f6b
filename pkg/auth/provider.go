// Package auth supplies Zoho OAuth access tokens to the product clients.
//
// A Provider owns one credential (client id, client secret, refresh token
// and the current access token). Tokens are refreshed shortly before they
// expire and after the API rejected them; concurrent callers share a single
// in-flight refresh.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for token refreshes.
var (
	zohoTokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_token_refreshes_total",
		Help: "Total access token refreshes by result",
	}, []string{"result"}) // "success", "store", "rejected", "error"

	zohoTokenRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zoho_token_refresh_duration_seconds",
		Help:    "Duration of access token refreshes against the accounts server",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

const (
	// DefaultSafetyMargin refreshes tokens this long before they expire.
	DefaultSafetyMargin = 60 * time.Second

	// DefaultRefreshTimeout bounds one refresh, independent of the callers.
	DefaultRefreshTimeout = 30 * time.Second

	refreshKey = "refresh"
)

// Credential is the OAuth state of one Zoho client registration.
type Credential struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// Token is an access token issued by the accounts server.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	APIDomain   string    `json:"api_domain,omitempty"`
}

// ValidAt reports whether the token is still usable at now with margin to spare.
func (t Token) ValidAt(now time.Time, margin time.Duration) bool {
	return t.AccessToken != "" && t.ExpiresAt.Sub(now) > margin
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, cred Credential) (Token, error)
}

// Store shares access tokens between processes using the same credential.
type Store interface {
	// Load returns the stored token; ok is false when none is stored.
	Load(ctx context.Context) (tok Token, ok bool, err error)

	// Save stores tok until it expires.
	Save(ctx context.Context, tok Token) error
}

// Config holds the provider configuration.
type Config struct {
	// Credential is the client registration (REQUIRED: ClientID,
	// ClientSecret, RefreshToken). AccessToken and ExpiresAt may seed a
	// previously obtained token.
	Credential Credential

	// Refresher performs refreshes (REQUIRED), usually an *OAuthRefresher.
	Refresher Refresher

	// Store optionally shares tokens across processes.
	Store Store

	// SafetyMargin is how long before expiry a token counts as expired.
	SafetyMargin time.Duration

	// RefreshTimeout bounds one refresh.
	RefreshTimeout time.Duration
}

// DefaultConfig returns the default provider configuration.
func DefaultConfig(cred Credential, refresher Refresher) Config {
	return Config{
		Credential:     cred,
		Refresher:      refresher,
		SafetyMargin:   DefaultSafetyMargin,
		RefreshTimeout: DefaultRefreshTimeout,
	}
}

// Provider hands out valid access tokens. It is safe for concurrent use.
type Provider struct {
	mu   sync.RWMutex
	cred Credential

	refresher Refresher
	store     Store
	margin    time.Duration
	timeout   time.Duration

	group  singleflight.Group
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a new Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Credential.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.Credential.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if cfg.Credential.RefreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}
	if cfg.Refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if cfg.SafetyMargin < 0 {
		return nil, fmt.Errorf("safety margin must be >= 0 (got %s)", cfg.SafetyMargin)
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}

	return &Provider{
		cred:      cfg.Credential,
		refresher: cfg.Refresher,
		store:     cfg.Store,
		margin:    cfg.SafetyMargin,
		timeout:   cfg.RefreshTimeout,
		now:       time.Now,
		logger:    log.With().Str("component", "zoho-auth").Logger(),
	}, nil
}

// Token returns the current access token without refreshing.
func (p *Provider) Token() Token {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Token{AccessToken: p.cred.AccessToken, ExpiresAt: p.cred.ExpiresAt}
}

// GetValidAccessToken returns the cached access token while it is valid for
// longer than the safety margin, and refreshes it otherwise.
func (p *Provider) GetValidAccessToken(ctx context.Context) (string, error) {
	if tok := p.Token(); tok.ValidAt(p.now(), p.margin) {
		return tok.AccessToken, nil
	}
	return p.refresh(ctx, "", false)
}

// RefreshAccessToken forces a refresh against the accounts server.
func (p *Provider) RefreshAccessToken(ctx context.Context) (string, error) {
	return p.refresh(ctx, "", true)
}

// RenewRejected refreshes after the API rejected the given token. When the
// token was already replaced by a concurrent refresh, the replacement is
// returned without refreshing again.
func (p *Provider) RenewRejected(ctx context.Context, rejected string) (string, error) {
	if tok := p.Token(); tok.AccessToken != rejected && tok.ValidAt(p.now(), p.margin) {
		return tok.AccessToken, nil
	}
	return p.refresh(ctx, rejected, true)
}

// refresh joins the in-flight refresh or starts one. The refresh runs on a
// context detached from the caller's, so a caller giving up only detaches
// that caller.
func (p *Provider) refresh(ctx context.Context, rejected string, force bool) (string, error) {
	ch := p.group.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.doRefresh(rctx, rejected, force)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("wait for token refresh: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *Provider) doRefresh(ctx context.Context, rejected string, force bool) (string, error) {
	now := p.now()

	// A refresh that completed just before this one started may already
	// have produced a usable token.
	current := p.Token()
	if current.ValidAt(now, p.margin) && !force {
		return current.AccessToken, nil
	}
	if current.ValidAt(now, p.margin) && rejected != "" && current.AccessToken != rejected {
		return current.AccessToken, nil
	}

	if p.store != nil && (!force || rejected != "") {
		tok, ok, err := p.store.Load(ctx)
		switch {
		case err != nil:
			p.logger.Warn().Err(err).Msg("Token store unavailable, refreshing from accounts server")
		case ok && tok.ValidAt(now, p.margin) && tok.AccessToken != rejected:
			p.apply(tok)
			zohoTokenRefreshesTotal.WithLabelValues("store").Inc()
			p.logger.Debug().Time("expires_at", tok.ExpiresAt).Msg("Access token taken from shared store")
			return tok.AccessToken, nil
		}
	}

	p.mu.RLock()
	cred := p.cred
	p.mu.RUnlock()

	start := time.Now()
	tok, err := p.refresher.Refresh(ctx, cred)
	zohoTokenRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if client.ClassOf(err) == client.ErrorClassAuth {
			zohoTokenRefreshesTotal.WithLabelValues("rejected").Inc()
			p.logger.Error().Err(err).Msg("Refresh token rejected, re-authorization required")
		} else {
			zohoTokenRefreshesTotal.WithLabelValues("error").Inc()
			p.logger.Warn().Err(err).Msg("Access token refresh failed")
		}
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	p.apply(tok)
	zohoTokenRefreshesTotal.WithLabelValues("success").Inc()
	p.logger.Info().
		Time("expires_at", tok.ExpiresAt).
		Bool("forced", force).
		Msg("Access token refreshed")

	if p.store != nil {
		if err := p.store.Save(ctx, tok); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to share access token")
		}
	}

	return tok.AccessToken, nil
}

// apply swaps the access token in one step.
func (p *Provider) apply(tok Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cred.AccessToken = tok.AccessToken
	p.cred.ExpiresAt = tok.ExpiresAt
}
