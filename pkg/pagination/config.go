package pagination

import (
	"fmt"
	"time"
)

const (
	// MaxRequests is the hard ceiling of page requests per Paginate call,
	// independent of MaxRecords.
	MaxRequests = 100

	// MaxBackoff caps both the proactive inter-page delay and retry backoff.
	MaxBackoff = 10 * time.Second

	// BackoffMultiplier is the growth factor between successive delays.
	BackoffMultiplier = 1.5
)

// Config holds the pagination settings of one product client.
// It is read-only once the engine is created.
type Config struct {
	// DefaultPageSize is used when a request does not set a page size.
	DefaultPageSize int

	// MaxPageSize caps any requested page size.
	MaxPageSize int

	// EnableAutoPagination follows pages until a stop condition.
	// When false only the first page is fetched.
	EnableAutoPagination bool

	// RateLimitDelay is the base of the proactive delay between pages.
	RateLimitDelay time.Duration

	// MaxRetries is the number of retries per page for rate limits and
	// retryable API errors.
	MaxRetries int

	// UsePageTokens continues with the opaque token returned by the API
	// instead of the numeric offset when one is present.
	UsePageTokens bool

	// MaxRecordsPerBatch is the record cap when a request sets none.
	MaxRecordsPerBatch int
}

// DefaultConfig returns conservative defaults matching Zoho's per-minute quotas.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize:      200,
		MaxPageSize:          200,
		EnableAutoPagination: true,
		RateLimitDelay:       500 * time.Millisecond,
		MaxRetries:           3,
		UsePageTokens:        false,
		MaxRecordsPerBatch:   2000,
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (c Config) Validate() error {
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("default_page_size must be > 0 (got %d)", c.DefaultPageSize)
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("max_page_size must be > 0 (got %d)", c.MaxPageSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries)
	}
	if c.RateLimitDelay < 0 {
		return fmt.Errorf("rate_limit_delay must be >= 0 (got %s)", c.RateLimitDelay)
	}
	if c.MaxRecordsPerBatch <= 0 {
		return fmt.Errorf("max_records_per_batch must be > 0 (got %d)", c.MaxRecordsPerBatch)
	}
	return nil
}
