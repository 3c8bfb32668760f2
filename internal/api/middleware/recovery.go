package middleware

import (
	"log/slog"
	"net/http"
)

// recoveryWriter tracks whether the response has started, so a panic
// after the first byte does not trigger a second WriteHeader.
type recoveryWriter struct {
	http.ResponseWriter
	wrote bool
}

func (rw *recoveryWriter) WriteHeader(code int) {
	rw.wrote = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recoveryWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

// Flush passes through so chunked downloads keep flushing per chunk.
func (rw *recoveryWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Recovery converts handler panics into 500 responses. http.ErrAbortHandler
// is re-raised so the server can abort the connection as intended. Panics
// after the response has started are logged only; the status line is
// already on the wire.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &recoveryWriter{ResponseWriter: w}

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				slog.Error("panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)

				if wrapped.wrote {
					return
				}

				wrapped.Header().Set("Content-Type", "application/json")
				wrapped.WriteHeader(http.StatusInternalServerError)
				wrapped.Write([]byte(`{"error":"An unexpected error occurred. Please try again later."}`))
			}
		}()

		next.ServeHTTP(wrapped, r)
	})
}
