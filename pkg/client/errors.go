package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass represents a classification of API failures.
type ErrorClass string

const (
	// ErrorClassAuth represents 401 responses and rejected refresh tokens.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassRateLimit represents 429 responses and locally gated requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassClient represents the remaining 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures (timeouts, DNS, resets).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassValidation represents requests rejected before they were sent.
	ErrorClassValidation ErrorClass = "validation"
)

// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// Sentinel errors matched by the typed errors through errors.Is.
var (
	// ErrUnauthorized matches every *AuthError.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited matches every *RateLimitError.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest matches every *ValidationError.
	ErrInvalidRequest = errors.New("invalid request")
)

// ClassifiedError is implemented by every error the access layer returns
// for a failed call.
type ClassifiedError interface {
	error
	Class() ErrorClass
	Retryable() bool
}

// AuthError means the access token was rejected, or the refresh token itself
// was rejected and the application has to be re-authorized.
type AuthError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "access token rejected"
	}
	if e.Err != nil {
		return fmt.Sprintf("zoho auth error (status %d): %s: %v", e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("zoho auth error (status %d): %s", e.StatusCode, msg)
}

func (e *AuthError) Unwrap() error        { return e.Err }
func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }
func (e *AuthError) Class() ErrorClass    { return ErrorClassAuth }
func (e *AuthError) Retryable() bool      { return false }

// RateLimitError is returned for HTTP 429 and for requests held back by the
// rate limit tracker. RetryAfter is the wait the server (or tracker) asked for.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("zoho rate limit (status %d, retry after %s): %s", e.StatusCode, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("zoho rate limit (status %d, retry after %s)", e.StatusCode, e.RetryAfter)
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
func (e *RateLimitError) Class() ErrorClass    { return ErrorClassRateLimit }
func (e *RateLimitError) Retryable() bool      { return true }

// APIError is any other failed call. StatusCode is 0 for transport failures.
// Only 5xx and transport failures are flagged Retryable.
type APIError struct {
	StatusCode  int
	Code        string
	Message     string
	Body        []byte
	IsRetryable bool
	Err         error
}

func (e *APIError) Error() string {
	class := e.Class()
	switch {
	case e.Err != nil:
		return fmt.Sprintf("zoho %s error (status %d): %v", class, e.StatusCode, e.Err)
	case e.Message != "" && e.Code != "":
		return fmt.Sprintf("zoho %s error (status %d): %s: %s", class, e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("zoho %s error (status %d): %s", class, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("zoho %s error (status %d)", class, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error   { return e.Err }
func (e *APIError) Retryable() bool { return e.IsRetryable }

func (e *APIError) Class() ErrorClass {
	switch {
	case e.StatusCode == 0:
		return ErrorClassNetwork
	case e.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// ValidationError is a request the caller built incorrectly. It is produced
// before anything is sent and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid request: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }
func (e *ValidationError) Class() ErrorClass    { return ErrorClassValidation }
func (e *ValidationError) Retryable() bool      { return false }

// IsRetryable reports whether err, anywhere in its chain, is a classified
// error flagged as retryable.
func IsRetryable(err error) bool {
	var ce ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}

// RetryAfter returns the server-requested wait if err carries a
// *RateLimitError.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// ClassOf returns the error class of err, or "" for unclassified errors.
func ClassOf(err error) ErrorClass {
	var ce ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class()
	}
	return ""
}
