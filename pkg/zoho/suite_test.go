package zoho

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/zoho-client/internal/testutil"
	"github.com/Sternrassler/zoho-client/pkg/auth"
	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/Sternrassler/zoho-client/pkg/pagination"
)

func newMockSuite(t *testing.T, mock *testutil.MockZoho) *Suite {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Credential = auth.Credential{
		ClientID:     "1000.ABC",
		ClientSecret: "secret",
		RefreshToken: "1000.refresh",
	}
	cfg.AccountsURL = mock.TokenURL()
	cfg.BooksOrganizationID = "10234695"
	cfg.DeskOrgID = "6543"
	cfg.Pagination.RateLimitDelay = 0
	cfg.BaseURLs = map[Product]string{}
	for _, p := range Products {
		cfg.BaseURLs[p] = mock.BaseURL(string(p))
	}

	s, err := NewSuite(cfg)
	if err != nil {
		t.Fatalf("NewSuite() error = %v", err)
	}
	return s
}

func TestNewSuite_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataCenter = "moon"
	if _, err := NewSuite(cfg); err == nil {
		t.Error("unknown data center should fail")
	}

	cfg = DefaultConfig()
	if _, err := NewSuite(cfg); err == nil {
		t.Error("missing credential should fail")
	}
}

func TestNewSuite_TokenSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TokenSource = staticTokens{}

	s, err := NewSuite(cfg)
	if err != nil {
		t.Fatalf("NewSuite() error = %v", err)
	}
	if s.Provider != nil {
		t.Error("Provider should be nil with an external token source")
	}
	if s.Cache != nil {
		t.Error("Cache should be nil without Redis")
	}
	for _, p := range Products {
		c := s.Client(p)
		if c == nil || c.Product() != p {
			t.Errorf("Client(%s) = %v", p, c)
		}
	}
	if s.Client("mail") != nil {
		t.Error("Client(mail) should be nil")
	}
	if got := s.CRM.Config().URL(); got != "https://crm.zoho.com/api/v2" {
		t.Errorf("CRM URL = %q", got)
	}
}

func TestSuite_SharesToken(t *testing.T) {
	mock := testutil.NewMockZoho()
	defer mock.Close()
	mock.SetResponse("/crm/api/org", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"org":[{"id":"1"}]}`})
	mock.SetResponse("/desk/api/departments", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"data":[]}`})

	s := newMockSuite(t, mock)
	ctx := context.Background()

	if _, err := s.CRM.Get(ctx, "/org", nil); err != nil {
		t.Fatalf("CRM Get() error = %v", err)
	}
	if _, err := s.Desk.Get(ctx, "/departments", nil); err != nil {
		t.Fatalf("Desk Get() error = %v", err)
	}

	if mock.TokenCount() != 1 {
		t.Errorf("token requests = %d, want 1", mock.TokenCount())
	}
	if got := mock.LastHeader().Get("Authorization"); got != "Zoho-oauthtoken mock-token-1" {
		t.Errorf("Authorization = %q", got)
	}
	if got := mock.LastHeader().Get("orgId"); got != "6543" {
		t.Errorf("orgId = %q, want 6543", got)
	}
}

func TestSuite_RefreshesOnceOn401(t *testing.T) {
	mock := testutil.NewMockZoho()
	defer mock.Close()
	mock.SetResponse("/crm/api/users", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"users":[]}`})

	s := newMockSuite(t, mock)
	ctx := context.Background()

	mock.RejectNext(1)
	if _, err := s.CRM.Get(ctx, "/users", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if mock.TokenCount() != 2 || mock.RequestCount() != 2 {
		t.Errorf("token requests = %d, api requests = %d, want 2, 2", mock.TokenCount(), mock.RequestCount())
	}
	if got := mock.LastHeader().Get("Authorization"); got != "Zoho-oauthtoken mock-token-2" {
		t.Errorf("retry Authorization = %q", got)
	}

	mock.RejectNext(2)
	_, err := s.CRM.Get(ctx, "/users", nil)

	var authErr *client.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *client.AuthError", err)
	}
	if mock.RequestCount() != 4 {
		t.Errorf("api requests = %d, want 4", mock.RequestCount())
	}
}

func TestSuite_BooksListScopedToOrganization(t *testing.T) {
	mock := testutil.NewMockZoho()
	defer mock.Close()
	mock.SetCollection("books", "/books/api/invoices", 12)

	s := newMockSuite(t, mock)

	res, err := ListInto[testutil.MockRecord](context.Background(), s.Books, "/invoices", ListOptions{PageSize: 5})
	if err != nil {
		t.Fatalf("ListInto() error = %v", err)
	}
	if res.TotalRecords != 12 || res.Requests != 3 {
		t.Errorf("records = %d in %d requests, want 12 in 3", res.TotalRecords, res.Requests)
	}
	if got := mock.LastQuery()["organization_id"]; len(got) != 1 || got[0] != "10234695" {
		t.Errorf("organization_id = %v", got)
	}
}

func TestSuite_RateLimitBlocksProduct(t *testing.T) {
	mock := testutil.NewMockZoho()
	defer mock.Close()
	mock.SetResponse("/crm/api/Leads", testutil.MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code":"TOO_MANY_REQUESTS","message":"too many requests"}`,
		Headers:    map[string]string{"Retry-After": "30"},
	})
	mock.SetResponse("/books/api/items", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"items":[]}`})

	s := newMockSuite(t, mock)
	ctx := context.Background()

	_, err := s.CRM.Get(ctx, "/Leads", nil)
	if client.ClassOf(err) != client.ErrorClassRateLimit {
		t.Fatalf("first error class = %q (err %v), want rate_limit", client.ClassOf(err), err)
	}

	before := mock.RequestCount()
	_, err = s.CRM.Get(ctx, "/Leads", nil)
	if client.ClassOf(err) != client.ErrorClassRateLimit {
		t.Fatalf("second error class = %q, want rate_limit", client.ClassOf(err))
	}
	if mock.RequestCount() != before {
		t.Error("blocked request should not reach the server")
	}

	if _, err := s.Books.Get(ctx, "/items", nil); err != nil {
		t.Errorf("Books should not be blocked by a CRM rate limit: %v", err)
	}
}

func TestSuite_PaginationDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TokenSource = staticTokens{}
	cfg.Pagination = pagination.Config{}

	if _, err := NewSuite(cfg); err != nil {
		t.Fatalf("NewSuite() with zero pagination config error = %v", err)
	}
}
