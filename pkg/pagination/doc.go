// Package pagination drives auto-pagination over Zoho list endpoints.
//
// Pages are requested strictly one after another: later pages depend on the
// cursor advanced (or the page token returned) by earlier ones, and the Zoho
// APIs enforce per-minute quotas independent of any 429. Between pages the
// engine waits a growing delay:
//
//	delay(n) = min(RateLimitDelay * 1.5^(n-1), 10s)   // 0 before the first request
//
// A page failing with a rate limit or a retryable API error is retried up to
// MaxRetries times without advancing the cursor, waiting Retry-After for rate
// limits and delay(attempt) otherwise.
//
// Example usage:
//
//	engine, err := pagination.NewEngine("crm", pagination.DefaultConfig())
//	res, err := pagination.Paginate(ctx, engine, pagination.Request{PageSize: 100},
//		func(ctx context.Context, c pagination.Cursor, size int) (pagination.Page[Lead], error) {
//			return fetchLeads(ctx, c.PageNumber(size), size)
//		})
//
// Stop conditions:
//   - a page shorter than the page size, an empty page, or an explicit
//     "no more records" flag
//   - MaxRecords collected (HasMore stays true)
//   - MaxRequests (100) page requests, logged and flagged in the result
//   - context cancellation (ErrCancelled)
package pagination
