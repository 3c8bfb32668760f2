// Package ratelimit provides sliding-window request admission keyed by
// client identifier, with in-memory and Redis-backed stores.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request was admitted and recorded.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long until the oldest recorded request leaves the
	// window. Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// Store tracks per-client request timestamps over a sliding window.
// Timestamps older than the window are discarded before counting, so a
// client regains capacity as old requests age out rather than at fixed
// window boundaries.
type Store interface {
	// Admit records the request if capacity remains and reports the outcome.
	Admit(ctx context.Context, key string) (Decision, error)
}
