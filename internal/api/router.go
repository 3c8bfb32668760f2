package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ripclip/ripclip/internal/api/handler"
	mw "github.com/ripclip/ripclip/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured. limiter
// guards the media endpoints; health and the service card stay open so
// probes never get throttled.
func NewRouter(
	mediaHandler *handler.MediaHandler,
	healthHandler *handler.HealthHandler,
	historyHandler *handler.HistoryHandler,
	limiter func(http.Handler) http.Handler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //health -> /health)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(5 * time.Minute))

	// CORS for browser frontends
	r.Use(mw.CORS)

	// Service card and probes (no rate limit)
	r.Get("/", healthHandler.Info)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/stats", healthHandler.Stats)
	r.Get("/history", historyHandler.Recent)

	// Media endpoints share the per-client limiter
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter)
		}

		r.Get("/preview", mediaHandler.Preview)
		r.Get("/profile", mediaHandler.Profile)
		r.Get("/download", mediaHandler.Download)
	})

	return r
}
