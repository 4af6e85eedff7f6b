// Package metrics exposes the Prometheus metrics of the Zoho client.
// The metrics themselves are defined in their packages (client, auth,
// pagination, ratelimit, cache) and registered there via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers its metrics with.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Registered reports whether a metric family called name is exposed.
// Vectors appear only once a label combination has been observed.
func Registered(name string) (bool, error) {
	families, err := Gatherer.Gather()
	if err != nil {
		return false, err
	}
	for _, f := range families {
		if f.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

// Metrics
//
// Requests (pkg/client):
//   - zoho_requests_total{product, status} (Counter)
//   - zoho_request_duration_seconds{product} (Histogram)
//   - zoho_errors_total{class} (Counter): auth, rate_limit, client, server, network, validation
//   - zoho_auth_retries_total{product} (Counter): calls retried after a 401
//
// Tokens (pkg/auth):
//   - zoho_token_refreshes_total{result} (Counter): success, store, rejected, error
//   - zoho_token_refresh_duration_seconds (Histogram)
//
// Pagination (pkg/pagination):
//   - zoho_pagination_pages_total{product} (Counter)
//   - zoho_pagination_delay_seconds{product} (Histogram): proactive inter-page delay
//   - zoho_pagination_safety_stops_total{product} (Counter)
//   - zoho_pagination_retries_total{error_class} (Counter)
//   - zoho_pagination_retry_backoff_seconds{error_class} (Histogram)
//   - zoho_pagination_retry_exhausted_total{error_class} (Counter)
//
// Rate limits (pkg/ratelimit):
//   - zoho_rate_limit_remaining{product} (Gauge)
//   - zoho_rate_limit_hits_total{product} (Counter): 429 responses
//   - zoho_rate_limit_blocks_total{product} (Counter): requests failed fast while blocked
//
// Metadata cache (pkg/cache):
//   - zoho_cache_hits_total{product}, zoho_cache_misses_total{product} (Counter)
//   - zoho_cache_size_bytes (Gauge)
//   - zoho_cache_errors_total{operation} (Counter)
//
// Example queries:
//
//	# 429 rate per product
//	sum by (product) (rate(zoho_rate_limit_hits_total[5m]))
//
//	# Token refresh failures
//	rate(zoho_token_refreshes_total{result=~"rejected|error"}[15m])
//
//	# P95 call latency
//	histogram_quantile(0.95, sum by (le, product) (rate(zoho_request_duration_seconds_bucket[5m])))
