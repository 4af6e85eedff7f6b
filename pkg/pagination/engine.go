package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrCancelled is returned when the context ends during a sweep.
var ErrCancelled = errors.New("pagination cancelled")

// Cursor is the continuation point of the next page request.
type Cursor struct {
	// Offset is the zero-based index of the first record of the page.
	Offset int
	// PageToken is the opaque continuation token, when the API issued one.
	PageToken string
}

// PageNumber returns the one-based page number of the cursor for page-number dialects.
func (c Cursor) PageNumber(pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	return c.Offset/pageSize + 1
}

// Page is one fetched page.
type Page[T any] struct {
	Records []T
	// HasMore is the API's own "more records" flag; nil when it sends none.
	HasMore *bool
	// NextPageToken is the opaque continuation token, if any.
	NextPageToken string
}

// FetchFunc fetches a single page at cursor.
type FetchFunc[T any] func(ctx context.Context, cursor Cursor, pageSize int) (Page[T], error)

// Request holds the per-call pagination parameters. Zero values fall back
// to the engine configuration.
type Request struct {
	PageSize    int
	MaxRecords  int
	StartOffset int
	PageToken   string
}

// Result is the aggregated outcome of a sweep.
type Result[T any] struct {
	Data         []T
	TotalRecords int
	// HasMore is true when records were left unfetched: MaxRecords was
	// reached, or the MaxRequests ceiling stopped the sweep early, in which
	// case SafetyLimitReached is set as well.
	HasMore       bool
	NextPageToken string
	CurrentPage   int
	TotalPages    int
	// Requests counts successful page requests, retries excluded.
	Requests int
	// SafetyLimitReached is set when the sweep stopped at MaxRequests.
	SafetyLimitReached bool
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Engine paginates list calls for one product.
type Engine struct {
	name   string
	config Config
	sleep  Sleeper
	logger zerolog.Logger
}

// NewEngine creates a pagination engine. The name labels logs and metrics.
func NewEngine(name string, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		name:   name,
		config: cfg,
		sleep:  sleepContext,
		logger: log.With().Str("component", "zoho-pagination").Str("product", name).Logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// SetSleeper replaces the wait function (for testing).
func (e *Engine) SetSleeper(s Sleeper) {
	e.sleep = s
}

// state is local to one Paginate call.
type state struct {
	cursor       Cursor
	pageSize     int
	fetched      int
	hasMore      bool
	requestCount int
}

// Paginate fetches pages sequentially until the API runs out of records,
// maxRecords is reached, or MaxRequests pages were requested.
//
// A page shorter than the page size is taken as the last one. A full page is
// taken as non-final unless the API says otherwise, so a record count that is
// an exact multiple of the page size costs one extra, empty request.
//
// On error the returned result holds the records collected before the failure.
func Paginate[T any](ctx context.Context, e *Engine, req Request, fetch FetchFunc[T]) (*Result[T], error) {
	cfg := e.config
	start := time.Now()

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = cfg.DefaultPageSize
	}
	if pageSize > cfg.MaxPageSize {
		pageSize = cfg.MaxPageSize
	}

	maxRecords := req.MaxRecords
	if maxRecords <= 0 {
		maxRecords = cfg.MaxRecordsPerBatch
	}

	st := &state{
		cursor:   Cursor{Offset: max(req.StartOffset, 0), PageToken: req.PageToken},
		pageSize: pageSize,
	}
	startPage := st.cursor.Offset / pageSize
	collected := make([]T, 0, min(maxRecords, pageSize))
	safetyStop := false

	e.logger.Debug().
		Int("page_size", pageSize).
		Int("max_records", maxRecords).
		Int("start_offset", st.cursor.Offset).
		Msg("Starting paginated fetch")

	for {
		if len(collected) >= maxRecords {
			st.hasMore = true
			break
		}

		page, err := fetchPage(ctx, e, st, fetch)
		if err != nil {
			res := buildResult(collected, maxRecords, st, startPage, false, cfg.UsePageTokens)
			return res, fmt.Errorf("fetch page %d: %w", st.cursor.PageNumber(pageSize), err)
		}

		collected = append(collected, page.Records...)
		st.requestCount++
		st.fetched = len(collected)
		paginationPagesTotal.WithLabelValues(e.name).Inc()

		st.hasMore = len(page.Records) >= pageSize && (page.HasMore == nil || *page.HasMore)

		st.cursor.Offset += pageSize
		if cfg.UsePageTokens {
			st.cursor.PageToken = page.NextPageToken
		}

		if !st.hasMore || !cfg.EnableAutoPagination {
			break
		}

		if st.requestCount >= MaxRequests {
			safetyStop = true
			paginationSafetyStopsTotal.WithLabelValues(e.name).Inc()
			e.logger.Warn().
				Int("requests", st.requestCount).
				Int("records", len(collected)).
				Msg("Pagination safety ceiling reached, stopping sweep")
			break
		}
	}

	res := buildResult(collected, maxRecords, st, startPage, safetyStop, cfg.UsePageTokens)

	e.logger.Info().
		Int("records", res.TotalRecords).
		Int("requests", res.Requests).
		Bool("has_more", res.HasMore).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return res, nil
}

// fetchPage waits the proactive inter-page delay, then fetches the page at
// the current cursor, retrying rate limits and retryable API errors.
func fetchPage[T any](ctx context.Context, e *Engine, st *state, fetch FetchFunc[T]) (Page[T], error) {
	if err := ctx.Err(); err != nil {
		return Page[T]{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	if delay := Backoff(e.config.RateLimitDelay, st.requestCount); delay > 0 {
		paginationDelaySeconds.WithLabelValues(e.name).Observe(delay.Seconds())
		if err := e.sleep(ctx, delay); err != nil {
			return Page[T]{}, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	var page Page[T]
	err := retryPage(ctx, e, func() error {
		var fetchErr error
		page, fetchErr = fetch(ctx, st.cursor, st.pageSize)
		return fetchErr
	})
	return page, err
}

func buildResult[T any](collected []T, maxRecords int, st *state, startPage int, safetyStop, usePageTokens bool) *Result[T] {
	data := collected
	if len(data) > maxRecords {
		data = data[:maxRecords]
	}

	res := &Result[T]{
		Data:               data,
		TotalRecords:       len(data),
		HasMore:            st.hasMore,
		CurrentPage:        startPage + st.requestCount,
		TotalPages:         startPage + (len(data)+st.pageSize-1)/st.pageSize,
		Requests:           st.requestCount,
		SafetyLimitReached: safetyStop,
	}
	if usePageTokens && st.hasMore {
		res.NextPageToken = st.cursor.PageToken
	}
	return res
}

// sleepContext waits with context cancellation support.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
