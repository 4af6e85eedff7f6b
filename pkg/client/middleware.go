package client

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RoundTripFunc performs one HTTP exchange.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// Middleware wraps a RoundTripFunc. Middleware may short-circuit by returning
// a ClassifiedError; it is passed to the caller unchanged.
type Middleware func(next RoundTripFunc) RoundTripFunc

// chain applies middleware so that mw[0] is the outermost wrapper.
func chain(base RoundTripFunc, mw []Middleware) RoundTripFunc {
	rt := base
	for i := len(mw) - 1; i >= 0; i-- {
		rt = mw[i](rt)
	}
	return rt
}

// LoggingMiddleware logs every exchange at debug level.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next RoundTripFunc) RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(req)

			event := logger.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Dur("duration", time.Since(start))
			if err != nil {
				event.Err(err).Msg("HTTP exchange failed")
				return resp, err
			}
			event.Int("status", resp.StatusCode).Msg("HTTP exchange")
			return resp, nil
		}
	}
}

// HeaderMiddleware sets static headers on every request, e.g. the Desk orgId.
func HeaderMiddleware(headers http.Header) Middleware {
	return func(next RoundTripFunc) RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			for key, values := range headers {
				req.Header.Del(key)
				for _, value := range values {
					req.Header.Add(key, value)
				}
			}
			return next(req)
		}
	}
}
