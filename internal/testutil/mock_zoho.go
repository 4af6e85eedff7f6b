// Package testutil provides a mock Zoho accounts and API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TokenPath is the path of the mock token endpoint.
const TokenPath = "/oauth/v2/token"

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRecord is the record served by collections.
type MockRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MockZoho is a configurable mock of the Zoho accounts server and the
// CRM, Books, People and Desk APIs.
type MockZoho struct {
	server *httptest.Server

	mu          sync.RWMutex
	handlers    map[string]http.HandlerFunc
	collections map[string]collection
	issued      int
	rejectNext  int

	requestCount int
	tokenCount   int
	lastHeader   http.Header
	lastQuery    map[string][]string
}

type collection struct {
	product string
	total   int
}

// NewMockZoho starts a mock server.
func NewMockZoho() *MockZoho {
	m := &MockZoho{
		handlers:    make(map[string]http.HandlerFunc),
		collections: make(map[string]collection),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server URL.
func (m *MockZoho) URL() string {
	return m.server.URL
}

// TokenURL returns the URL of the token endpoint.
func (m *MockZoho) TokenURL() string {
	return m.server.URL + TokenPath
}

// BaseURL returns the API base URL of product ("crm", "books", ...).
func (m *MockZoho) BaseURL(product string) string {
	return m.server.URL + "/" + product + "/api"
}

// Close shuts down the server.
func (m *MockZoho) Close() {
	m.server.Close()
}

// SetHandler installs a handler for an exact path.
func (m *MockZoho) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse installs a canned response for an exact path.
func (m *MockZoho) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	})
}

// SetCollection serves total records at path (relative to the server root,
// e.g. "/crm/api/v2/Leads"), paged the way product pages its lists.
func (m *MockZoho) SetCollection(product, path string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[path] = collection{product: product, total: total}
}

// RejectNext answers the next n API requests with 401 INVALID_TOKEN.
func (m *MockZoho) RejectNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectNext = n
}

// RequestCount returns the number of API requests, token requests excluded.
func (m *MockZoho) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// TokenCount returns the number of token requests.
func (m *MockZoho) TokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenCount
}

// LastHeader returns the headers of the last API request.
func (m *MockZoho) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// LastQuery returns the query of the last API request.
func (m *MockZoho) LastQuery() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

func (m *MockZoho) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == TokenPath {
		m.serveToken(w, r)
		return
	}

	m.mu.Lock()
	m.requestCount++
	m.lastHeader = r.Header.Clone()
	m.lastQuery = r.URL.Query()
	reject := m.rejectNext > 0
	if reject {
		m.rejectNext--
	}
	handler, hasHandler := m.handlers[r.URL.Path]
	coll, hasCollection := m.collections[r.URL.Path]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json;charset=UTF-8")

	if reject || !strings.HasPrefix(r.Header.Get("Authorization"), "Zoho-oauthtoken ") {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"INVALID_TOKEN","message":"invalid oauth token","status":"error"}`))
		return
	}

	switch {
	case hasHandler:
		handler(w, r)
	case hasCollection:
		m.serveCollection(w, r, coll)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"INVALID_URL_PATTERN","message":"Please check if the URL trying to access is a correct one","status":"error"}`))
	}
}

func (m *MockZoho) serveToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.tokenCount++
	m.issued++
	n := m.issued
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
		return
	}
	fmt.Fprintf(w, `{"access_token":"mock-token-%d","api_domain":"https://www.zohoapis.com","token_type":"Bearer","expires_in":3600}`, n)
}

// serveCollection answers one page of coll in the product's list format.
func (m *MockZoho) serveCollection(w http.ResponseWriter, r *http.Request, coll collection) {
	q := r.URL.Query()

	var start, size int
	switch coll.product {
	case "crm", "books":
		page := atoiDefault(q.Get("page"), 1)
		size = atoiDefault(q.Get("per_page"), 200)
		start = (page - 1) * size
	case "people":
		start = atoiDefault(q.Get("sIndex"), 1) - 1
		size = atoiDefault(q.Get("limit"), 200)
	case "desk":
		start = atoiDefault(q.Get("from"), 1) - 1
		size = atoiDefault(q.Get("limit"), 50)
	}

	records := make([]MockRecord, 0, size)
	for i := start; i < start+size && i < coll.total; i++ {
		records = append(records, MockRecord{ID: strconv.Itoa(i + 1), Name: fmt.Sprintf("record %d", i+1)})
	}
	more := start+size < coll.total

	var body any
	switch coll.product {
	case "crm":
		if len(records) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		body = map[string]any{
			"data": records,
			"info": map[string]any{"page": start/size + 1, "per_page": size, "count": len(records), "more_records": more},
		}
	case "books":
		books := map[string]any{
			"code":         0,
			"message":      "success",
			"page_context": map[string]any{"page": start/size + 1, "per_page": size, "has_more_page": more},
		}
		books[path.Base(r.URL.Path)] = records
		body = books
	case "people":
		body = map[string]any{"response": map[string]any{"result": records, "status": 0, "message": "Data fetched successfully"}}
	default:
		body = map[string]any{"data": records}
	}

	_ = json.NewEncoder(w).Encode(body)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
