package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupExpired = "expired"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_cache_lookups_total",
		Help: "Zoho metadata cache lookups by product and result (hit, miss, expired)",
	}, []string{"product", "result"})

	cacheWrittenBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_cache_written_bytes_total",
		Help: "Bytes written to the Zoho metadata cache by product",
	}, []string{"product"})

	cacheLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_cache_loads_total",
		Help: "Metadata loads from the API after a miss, concurrent callers counted once",
	}, []string{"product"})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zoho_cache_errors_total",
		Help: "Zoho metadata cache errors by product and operation (get, set, delete, scan)",
	}, []string{"product", "operation"})
)
