package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
)

func newTestRefresher(t *testing.T, url string) *OAuthRefresher {
	t.Helper()

	cfg := DefaultOAuthConfig("com")
	cfg.TokenURL = url
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	r, err := NewOAuthRefresher(cfg)
	if err != nil {
		t.Fatalf("NewOAuthRefresher() error = %v", err)
	}
	return r
}

func TestAccountsURL(t *testing.T) {
	tests := []struct {
		dataCenter string
		want       string
	}{
		{"com", "https://accounts.zoho.com/oauth/v2/token"},
		{"eu", "https://accounts.zoho.eu/oauth/v2/token"},
		{"com.au", "https://accounts.zoho.com.au/oauth/v2/token"},
		{"", "https://accounts.zoho.com/oauth/v2/token"},
	}

	for _, tt := range tests {
		if got := AccountsURL(tt.dataCenter); got != tt.want {
			t.Errorf("AccountsURL(%q) = %q, want %q", tt.dataCenter, got, tt.want)
		}
	}
}

func TestNewOAuthRefresher_Validation(t *testing.T) {
	if _, err := NewOAuthRefresher(OAuthConfig{}); err == nil || err.Error() != "token url is required" {
		t.Errorf("error = %v, want token url is required", err)
	}
	if _, err := NewOAuthRefresher(OAuthConfig{TokenURL: "https://accounts.zoho.com/oauth/v2/token", RetryMax: -1}); err == nil {
		t.Error("negative retry max should fail")
	}
}

func TestRefresh_Success(t *testing.T) {
	var form map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		form = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"refresh_token": r.PostForm.Get("refresh_token"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"1000.new","api_domain":"https://www.zohoapis.com","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := newTestRefresher(t, server.URL)
	r.now = func() time.Time { return now }

	tok, err := r.Refresh(context.Background(), testCredential())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if tok.AccessToken != "1000.new" {
		t.Errorf("AccessToken = %q, want 1000.new", tok.AccessToken)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, now.Add(time.Hour))
	}
	if tok.APIDomain != "https://www.zohoapis.com" {
		t.Errorf("APIDomain = %q", tok.APIDomain)
	}

	want := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": "1000.refresh",
		"client_id":     "1000.ABC",
		"client_secret": "secret",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("form %s = %q, want %q", k, form[k], v)
		}
	}
}

func TestRefresh_Errors(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []int
		body          string
		wantCalls     int32
		wantClass     client.ErrorClass
		wantRetryable bool
	}{
		{
			name:      "rejected with 200 and error field",
			statuses:  []int{200},
			body:      `{"error":"invalid_code"}`,
			wantCalls: 1,
			wantClass: client.ErrorClassAuth,
		},
		{
			name:      "400 not retried",
			statuses:  []int{400},
			body:      `{"error":"invalid_client"}`,
			wantCalls: 1,
			wantClass: client.ErrorClassAuth,
		},
		{
			name:          "5xx retried until exhausted",
			statuses:      []int{503, 503, 503, 503},
			wantCalls:     4,
			wantClass:     client.ErrorClassServer,
			wantRetryable: true,
		},
		{
			name:      "missing access token",
			statuses:  []int{200},
			body:      `{"token_type":"Bearer"}`,
			wantCalls: 1,
			wantClass: client.ErrorClassClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[min(int(n)-1, len(tt.statuses)-1)])
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestRefresher(t, server.URL).Refresh(context.Background(), testCredential())
			if err == nil {
				t.Fatal("Refresh() error = nil, want error")
			}
			if class := client.ClassOf(err); class != tt.wantClass {
				t.Errorf("class = %q, want %q (err %v)", class, tt.wantClass, err)
			}
			if retryable := client.IsRetryable(err); retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", retryable, tt.wantRetryable)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestRefresh_ServerRecovers(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"1000.ok","expires_in":3600}`))
	}))
	defer server.Close()

	tok, err := newTestRefresher(t, server.URL).Refresh(context.Background(), testCredential())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.AccessToken != "1000.ok" || calls.Load() != 2 {
		t.Errorf("token = %q after %d calls, want 1000.ok after 2", tok.AccessToken, calls.Load())
	}
}

func TestRefresh_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := DefaultOAuthConfig("com")
	cfg.TokenURL = url
	cfg.RetryMax = 0
	r, err := NewOAuthRefresher(cfg)
	if err != nil {
		t.Fatalf("NewOAuthRefresher() error = %v", err)
	}

	_, err = r.Refresh(context.Background(), testCredential())

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *client.APIError", err)
	}
	if apiErr.StatusCode != 0 || !apiErr.Retryable() {
		t.Errorf("APIError = %+v, want status 0 and retryable", apiErr)
	}
}

func TestProvider_WithOAuthRefresher(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"access_token":"1000.live","expires_in":3600}`))
	}))
	defer server.Close()

	p := newTestProvider(t, testCredential(), newTestRefresher(t, server.URL), nil)

	for i := 0; i < 3; i++ {
		tok, err := p.GetValidAccessToken(context.Background())
		if err != nil {
			t.Fatalf("GetValidAccessToken() error = %v", err)
		}
		if tok != "1000.live" {
			t.Errorf("token = %q, want 1000.live", tok)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("token endpoint calls = %d, want 1", calls.Load())
	}
}
