package pagination

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pagination sweeps.
var (
	paginationPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_pagination_pages_total",
		Help: "Total pages fetched by auto-pagination by product",
	}, []string{"product"})

	paginationDelaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoho_pagination_delay_seconds",
		Help:    "Proactive delay inserted between page requests by product",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"product"})

	paginationSafetyStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_pagination_safety_stops_total",
		Help: "Total sweeps stopped by the request ceiling by product",
	}, []string{"product"})

	paginationRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_pagination_retries_total",
		Help: "Total page retries by error class",
	}, []string{"error_class"})

	paginationRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zoho_pagination_retry_backoff_seconds",
		Help:    "Wait before a page retry by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	paginationRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_pagination_retry_exhausted_total",
		Help: "Total pages that exhausted their retries by error class",
	}, []string{"error_class"})
)

// Backoff returns the delay before request n (n requests already made):
// 0 for n < 1, otherwise min(base * 1.5^(n-1), MaxBackoff).
func Backoff(base time.Duration, n int) time.Duration {
	if n < 1 || base <= 0 {
		return 0
	}
	d := float64(base) * math.Pow(BackoffMultiplier, float64(n-1))
	if d > float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(d)
}

// retryDelay returns the wait before retry number attempt (1-based).
// A rate limit wait is taken from the server as is.
func retryDelay(base time.Duration, err error, attempt int) time.Duration {
	if wait, ok := client.RetryAfter(err); ok {
		return wait
	}
	return Backoff(base, attempt)
}

// retryPage runs fn until it succeeds, fails with a non-retryable error, or
// MaxRetries retries were spent. The last error is returned as is.
func retryPage(ctx context.Context, e *Engine, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				e.logger.Info().
					Int("attempt", attempt+1).
					Msg("Page fetched after retry")
			}
			return nil
		}

		if !client.IsRetryable(err) {
			return err
		}

		errorClass := string(client.ClassOf(err))

		if attempt >= e.config.MaxRetries {
			paginationRetryExhaustedTotal.WithLabelValues(errorClass).Inc()
			e.logger.Warn().
				Err(err).
				Str("error_class", errorClass).
				Int("max_retries", e.config.MaxRetries).
				Msg("Page retries exhausted")
			return err
		}

		wait := retryDelay(e.config.RateLimitDelay, err, attempt+1)
		paginationRetriesTotal.WithLabelValues(errorClass).Inc()
		paginationRetryBackoffSeconds.WithLabelValues(errorClass).Observe(wait.Seconds())

		e.logger.Warn().
			Str("error_class", errorClass).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Retrying page after backoff")

		if wait > 0 {
			if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
				return fmt.Errorf("%w: %w", ErrCancelled, sleepErr)
			}
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
	}
}
