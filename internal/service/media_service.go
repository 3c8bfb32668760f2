// Package service orchestrates the preview, profile, and download flows
// between URL detection, the yt-dlp gateway, workspaces, and the journal.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ripclip/ripclip/internal/domain"
	"github.com/ripclip/ripclip/internal/extractor"
	"github.com/ripclip/ripclip/internal/history"
	"github.com/ripclip/ripclip/internal/workspace"
	"github.com/ripclip/ripclip/pkg/transcode"
)

// MediaServiceConfig holds media service tuning.
type MediaServiceConfig struct {
	// MaxProfileEntries caps how many listing entries a profile exposes.
	MaxProfileEntries int

	// RetryDelay is the pause between profile fetch attempts. Zero means
	// one second.
	RetryDelay time.Duration
}

// MediaService coordinates media resolution and download preparation.
type MediaService struct {
	gateway    extractor.Gateway
	workspaces *workspace.Manager
	transcoder *transcode.Transcoder // nil when ffmpeg is unavailable
	journal    *history.Journal      // nil when history is disabled
	maxEntries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewMediaService creates a new media service. transcoder and journal
// may be nil to disable filtering and history.
func NewMediaService(
	gateway extractor.Gateway,
	workspaces *workspace.Manager,
	transcoder *transcode.Transcoder,
	journal *history.Journal,
	cfg MediaServiceConfig,
	logger *slog.Logger,
) *MediaService {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	return &MediaService{
		gateway:    gateway,
		workspaces: workspaces,
		transcoder: transcoder,
		journal:    journal,
		maxEntries: cfg.MaxProfileEntries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// Preview resolves metadata for a single video URL.
func (s *MediaService) Preview(ctx context.Context, rawURL string) (*domain.VideoMetadata, error) {
	platform, err := domain.Detect(rawURL)
	if err != nil {
		return nil, err
	}

	meta, err := s.gateway.FetchMetadata(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	meta.Platform = platform
	meta.URL = rawURL

	s.logger.Info("preview resolved",
		"platform", platform,
		"title", meta.Title,
	)

	return meta, nil
}

// Profile lists one page of a profile's videos. Page and limit are
// 1-based and assumed validated by the caller.
func (s *MediaService) Profile(ctx context.Context, rawURL string, page, limit int) (*domain.ProfilePage, error) {
	platform, err := domain.Detect(rawURL)
	if err != nil {
		return nil, err
	}

	// Profile pages flake more than single videos; one retry covers
	// most transient extractor failures.
	listing, err := retry(ctx, retryConfig{maxAttempts: 2, delay: s.retryDelay}, func() (*domain.Listing, error) {
		return s.gateway.FetchList(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}

	total := len(listing.Entries)
	if total > s.maxEntries {
		total = s.maxEntries
	}
	entries := listing.Entries[:total]

	name := listing.Uploader
	if name == "" {
		name = listing.Title
	}
	if name == "" {
		name = "profile"
	}
	profile := domain.SanitizeFilename(name)

	start := (page - 1) * limit
	end := start + limit

	videos := make([]domain.VideoEntry, 0, limit)
	if start < total {
		stop := end
		if stop > total {
			stop = total
		}
		for i, entry := range entries[start:stop] {
			// Indices stay absolute so a later download request can
			// address the same position in the full listing.
			index := start + i + 1
			if entry.URL == "" {
				continue
			}
			title := entry.Title
			if title == "" {
				title = fmt.Sprintf("Video %d", index)
			}
			videos = append(videos, domain.VideoEntry{
				Index:     index,
				URL:       entry.URL,
				Title:     title,
				Duration:  entry.Duration,
				ViewCount: entry.ViewCount,
			})
		}
	}

	s.logger.Info("profile resolved",
		"platform", platform,
		"profile", profile,
		"total", total,
		"page", page,
	)

	return &domain.ProfilePage{
		Profile:  profile,
		Platform: platform,
		Page:     page,
		Limit:    limit,
		Total:    total,
		HasNext:  end < total,
		Videos:   videos,
	}, nil
}

// DownloadRequest describes one download to prepare.
type DownloadRequest struct {
	URL     string
	Profile string
	Index   int
	Filter  string
}

// DownloadResult is a prepared artifact ready to stream. The caller owns
// the workspace and must Release it once streaming finishes.
type DownloadResult struct {
	Workspace    *workspace.Workspace
	ArtifactPath string
	Filename     string
	Platform     domain.Platform
}

// Download fetches a video into a fresh workspace and optionally runs a
// filter pass over it.
func (s *MediaService) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	platform, err := domain.Detect(req.URL)
	if err != nil {
		return nil, err
	}

	// Reject bad filters before spending a download on them.
	if req.Filter != "" {
		if !transcode.IsValidFilter(req.Filter) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFilter, req.Filter)
		}
		if s.transcoder == nil {
			return nil, fmt.Errorf("%w: ffmpeg not installed", domain.ErrFilterUnavailable)
		}
	}

	ws, err := s.workspaces.Acquire()
	if err != nil {
		return nil, err
	}

	dest := ws.ArtifactPath(req.Index)
	if err := s.gateway.Download(ctx, req.URL, dest); err != nil {
		ws.Release()
		return nil, err
	}

	if _, err := os.Stat(dest); err != nil {
		ws.Release()
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactMissing, err)
	}

	artifact := dest
	if req.Filter != "" {
		filtered := filepath.Join(ws.Path(), fmt.Sprintf("%d_%s.mp4", req.Index, req.Filter))
		if err := s.transcoder.Apply(ctx, dest, filtered, req.Filter); err != nil {
			ws.Release()
			s.logger.Error("filter pass failed",
				"filter", req.Filter,
				"url", req.URL,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %v", domain.ErrTranscodeFailed, err)
		}
		artifact = filtered
	}

	filename := domain.DownloadFilename(req.Profile, req.Index)

	s.logger.Info("download prepared",
		"platform", platform,
		"filename", filename,
		"filter", req.Filter,
	)

	return &DownloadResult{
		Workspace:    ws,
		ArtifactPath: artifact,
		Filename:     filename,
		Platform:     platform,
	}, nil
}

// RecordOutcome journals a download attempt without blocking the caller.
// A nil journal drops the entry.
func (s *MediaService) RecordOutcome(e history.Entry) {
	if s.journal == nil {
		return
	}
	go s.journal.Record(e)
}

// History returns recent journal entries and the total row count.
func (s *MediaService) History(ctx context.Context, limit, offset int) ([]history.Entry, int, error) {
	if s.journal == nil {
		return nil, 0, domain.ErrHistoryDisabled
	}
	return s.journal.Recent(ctx, limit, offset)
}

// HistoryStats returns the journaled attempt count per outcome.
func (s *MediaService) HistoryStats(ctx context.Context) (map[history.Outcome]int64, error) {
	if s.journal == nil {
		return nil, domain.ErrHistoryDisabled
	}
	return s.journal.Stats(ctx)
}

// HistoryEnabled reports whether the download journal is active.
func (s *MediaService) HistoryEnabled() bool {
	return s.journal != nil
}
