package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// errorEnvelope is the error body shape shared by the Zoho products.
// CRM and Desk send a string code, Books and People a numeric one.
type errorEnvelope struct {
	Code         json.RawMessage `json:"code"`
	Message      string          `json:"message"`
	ErrorCode    string          `json:"errorCode"`
	ErrorMessage string          `json:"error"`
}

// Classify maps a non-2xx HTTP response onto a classified error.
// It returns nil for 1xx-3xx statuses.
func Classify(status int, header http.Header, body []byte) error {
	if status < 400 {
		return nil
	}

	code, message := parseErrorBody(body)

	switch {
	case status == http.StatusUnauthorized:
		return &AuthError{StatusCode: status, Code: code, Message: message}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{
			StatusCode: status,
			RetryAfter: ParseRetryAfter(header.Get("Retry-After")),
			Message:    message,
		}
	case status >= 500:
		return &APIError{StatusCode: status, Code: code, Message: message, Body: body, IsRetryable: true}
	default:
		return &APIError{StatusCode: status, Code: code, Message: message, Body: body}
	}
}

// ClassifyTransport wraps an error raised by the transport (timeout, DNS,
// connection reset) into a retryable APIError with status 0. Errors that
// are already classified, such as a rate limit gate refusing the request,
// are returned unchanged.
func ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	var ce ClassifiedError
	if errors.As(err, &ce) {
		return err
	}
	return &APIError{StatusCode: 0, IsRetryable: true, Err: err}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP-date, falling back to DefaultRetryAfter when it is missing or
// unusable. A date already in the past yields 0.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return DefaultRetryAfter
		}
		return time.Duration(seconds) * time.Second
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return DefaultRetryAfter
	}
	if wait := time.Until(at); wait > 0 {
		return wait
	}
	return 0
}

func parseErrorBody(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ""
	}

	if len(env.Code) > 0 {
		var s string
		if err := json.Unmarshal(env.Code, &s); err == nil {
			code = s
		} else {
			code = string(env.Code)
		}
	}
	if code == "" {
		code = env.ErrorCode
	}

	message = env.Message
	if message == "" {
		message = env.ErrorMessage
	}
	return code, message
}
