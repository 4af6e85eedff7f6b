package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RequestContext describes one API call. It is a value: the dispatcher builds
// a fresh *http.Request from it for every attempt, including the 401 retry.
type RequestContext struct {
	Product    string
	BaseURL    string
	DataCenter string
	Method     string
	Path       string
	Query      url.Values
	Header     http.Header
	Body       []byte
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Validate checks the request before anything is sent.
func (rc RequestContext) Validate() error {
	if rc.BaseURL == "" {
		return &ValidationError{Field: "base_url", Message: "is required"}
	}
	u, err := url.Parse(rc.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "base_url", Message: fmt.Sprintf("%q is not an absolute URL", rc.BaseURL)}
	}
	if !allowedMethods[rc.method()] {
		return &ValidationError{Field: "method", Message: fmt.Sprintf("unsupported method %q", rc.Method)}
	}
	if strings.TrimSpace(rc.Path) == "" {
		return &ValidationError{Field: "path", Message: "is required"}
	}
	if len(rc.Body) > 0 && !json.Valid(rc.Body) {
		return &ValidationError{Field: "body", Message: "is not valid JSON"}
	}
	return nil
}

// URL returns the absolute request URL.
func (rc RequestContext) URL() string {
	u := strings.TrimRight(rc.BaseURL, "/") + "/" + strings.TrimLeft(rc.Path, "/")
	if len(rc.Query) > 0 {
		u += "?" + rc.Query.Encode()
	}
	return u
}

// NewRequest builds the HTTP request for one attempt.
func (rc RequestContext) NewRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(rc.Body) > 0 {
		body = bytes.NewReader(rc.Body)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method(), rc.URL(), body)
	if err != nil {
		return nil, &ValidationError{Field: "url", Message: err.Error()}
	}

	for key, values := range rc.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	return req, nil
}

func (rc RequestContext) method() string {
	if rc.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(rc.Method)
}

// Response is a successful (2xx) API response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body (204) is not an error.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
