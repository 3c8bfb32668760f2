package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// KeyFunc extracts the client identifier a request is limited by.
type KeyFunc func(r *http.Request) string

// Options configures the admission middleware.
type Options struct {
	Store  Store
	KeyFn  KeyFunc
	Logger *slog.Logger

	// Limit is the per-window budget, announced in X-RateLimit-Limit
	// when positive. Informational only; the store enforces the budget.
	Limit int
}

// DefaultKeyFunc keys on the request's network address, without the port.
func DefaultKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware rejects requests over the client's window budget with 429 and
// a Retry-After hint. Store failures admit the request so a broken limiter
// backend does not take the whole service down with it.
func Middleware(opts Options) func(http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			decision, err := opts.Store.Admit(r.Context(), key)
			if err != nil {
				opts.Logger.Warn("rate limit store failed, admitting request",
					"client", key,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			if opts.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(opts.Limit))
			}

			if !decision.Allowed {
				retrySecs := retryAfterSeconds(decision.RetryAfter)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"Too many requests. Please wait %d seconds before trying again."}`, retrySecs)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds a retry hint up to whole seconds for the
// Retry-After header, with a floor of one second.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
