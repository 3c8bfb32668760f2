package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ripclip/ripclip/internal/api"
	"github.com/ripclip/ripclip/internal/api/handler"
	"github.com/ripclip/ripclip/internal/config"
	"github.com/ripclip/ripclip/internal/extractor"
	"github.com/ripclip/ripclip/internal/history"
	"github.com/ripclip/ripclip/internal/ratelimit"
	"github.com/ripclip/ripclip/internal/service"
	"github.com/ripclip/ripclip/internal/stream"
	"github.com/ripclip/ripclip/internal/workspace"
	"github.com/ripclip/ripclip/pkg/transcode"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ripclip %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ripclip",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Workspace root for per-download scratch directories
	workspaces, err := workspace.NewManager(cfg.Storage.TempRoot, logger)
	if err != nil {
		logger.Error("failed to prepare workspace root", "error", err)
		os.Exit(1)
	}

	// Extraction engine. Every endpoint depends on it, so refuse to
	// start without the binary.
	gateway, err := extractor.NewYtDlp(extractor.Config{
		BinPath:       cfg.Extractor.BinPath,
		SocketTimeout: cfg.Extractor.SocketTimeout,
		MaxFileMB:     cfg.Extractor.MaxFileMB,
		LaunchRate:    cfg.Extractor.LaunchRate,
		LaunchBurst:   cfg.Extractor.LaunchBurst,
		UserAgent:     cfg.Extractor.UserAgent,
	}, logger)
	if err != nil {
		logger.Error("yt-dlp unavailable", "error", err)
		os.Exit(1)
	}

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	if v, err := gateway.Version(probeCtx); err == nil {
		logger.Info("yt-dlp ready", "yt_dlp_version", v)
	} else {
		logger.Warn("could not read yt-dlp version", "error", err)
	}
	cancelProbe()

	// Pixel filters are optional. Without ffmpeg, downloads still work
	// and filter requests are rejected.
	var transcoder *transcode.Transcoder
	if cfg.Transcode.Enabled {
		transcoder, err = transcode.NewTranscoder(cfg.Transcode.FFmpegPath)
		if err != nil {
			logger.Warn("ffmpeg unavailable, filters disabled", "error", err)
			transcoder = nil
		} else {
			logger.Info("ffmpeg ready", "filters", transcode.Filters())
		}
	}

	// Download journal is optional. Without a path, /history answers 404.
	var journal *history.Journal
	var pinger handler.ReadinessPinger
	if cfg.History.Path != "" {
		journal, err = history.NewJournal(cfg.History.Path, cfg.History.RetentionDays, logger)
		if err != nil {
			logger.Error("failed to open history journal", "path", cfg.History.Path, "error", err)
			os.Exit(1)
		}
		pinger = journal
		logger.Info("history journal enabled",
			"path", cfg.History.Path,
			"retention_days", cfg.History.RetentionDays,
		)
	}

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	if journal != nil {
		go runJournalCleanup(cleanupCtx, journal, logger)
	}

	// Rate limiting: Redis when configured so multiple instances share a
	// budget, otherwise a per-process memory store.
	var limiterStore ratelimit.Store
	var counter handler.ActiveClientCounter
	var redisStore *ratelimit.RedisStore
	if cfg.Limits.RedisURL != "" {
		redisStore, err = ratelimit.NewRedisStore(cfg.Limits.RedisURL, cfg.Limits.Window, cfg.Limits.MaxRequests)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		limiterStore = redisStore
		logger.Info("rate limiting backed by redis")
	} else {
		memStore := ratelimit.NewMemoryStore(cfg.Limits.Window, cfg.Limits.MaxRequests, cfg.Limits.SweepInterval)
		limiterStore = memStore
		counter = memStore
	}
	limiter := ratelimit.Middleware(ratelimit.Options{
		Store:  limiterStore,
		Logger: logger,
		Limit:  cfg.Limits.MaxRequests,
	})

	// Initialize service and handlers
	svc := service.NewMediaService(gateway, workspaces, transcoder, journal,
		service.MediaServiceConfig{MaxProfileEntries: cfg.Extractor.MaxProfileEntries},
		logger,
	)
	responder := stream.NewResponder(cfg.Stream.ChunkSize, logger)

	mediaHandler := handler.NewMediaHandler(svc, responder, cfg.Extractor.MaxFileMB, logger)
	healthHandler := handler.NewHealthHandler(Version, workspaces, counter, pinger)
	historyHandler := handler.NewHistoryHandler(svc, logger)

	// Setup router
	router := api.NewRouter(mediaHandler, healthHandler, historyHandler, limiter)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Cancel background tasks
	stopCleanup()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if journal != nil {
		if err := journal.Close(); err != nil {
			logger.Warn("journal close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Warn("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// runJournalCleanup enforces the retention window once at startup and
// then twice a day until ctx is cancelled.
func runJournalCleanup(ctx context.Context, journal *history.Journal, logger *slog.Logger) {
	if err := journal.Cleanup(ctx); err != nil {
		logger.Warn("journal cleanup failed", "error", err)
	}

	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := journal.Cleanup(ctx); err != nil {
				logger.Warn("journal cleanup failed", "error", err)
			}
		}
	}
}
