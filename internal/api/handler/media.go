package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ripclip/ripclip/internal/domain"
	"github.com/ripclip/ripclip/internal/history"
	"github.com/ripclip/ripclip/internal/ratelimit"
	"github.com/ripclip/ripclip/internal/service"
	"github.com/ripclip/ripclip/internal/stream"
	"github.com/ripclip/ripclip/pkg/transcode"
)

// Profile pagination bounds.
const (
	maxPage      = 20
	maxPageLimit = 50
)

// Client-facing error messages. Kept deliberately vague about extractor
// internals.
const (
	msgUnsupportedURL   = "Invalid URL or unsupported platform"
	msgUnavailable      = "Video unavailable or private. Please check the URL and try again."
	msgPreviewFailed    = "Failed to process video. Please try again."
	msgProfileFailed    = "Failed to fetch profile. Please verify the URL and try again."
	msgDownloadRejected = "Video download failed. Video may be private, geo-restricted, or too large (%dMB limit)."
	msgFiltersDisabled  = "Filters are not available on this server. Retry without the filter parameter."
	msgFilterFailed     = "Failed to apply filter. Please try again."
	msgArtifactMissing  = "Download failed. File was not created."
	msgDownloadFailed   = "An error occurred during download. Please try again."
	msgBadParams        = "Invalid request parameters"
)

// MediaHandler handles preview, profile listing, and download requests.
type MediaHandler struct {
	svc       *service.MediaService
	responder *stream.Responder
	maxFileMB int
	clientKey ratelimit.KeyFunc
	logger    *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(svc *service.MediaService, responder *stream.Responder, maxFileMB int, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		svc:       svc,
		responder: responder,
		maxFileMB: maxFileMB,
		clientKey: ratelimit.DefaultKeyFunc(),
		logger:    logger,
	}
}

// Preview handles GET /preview - metadata for a single video URL.
func (h *MediaHandler) Preview(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")

	meta, err := h.svc.Preview(r.Context(), rawURL)
	if err != nil {
		switch {
		case isURLRejection(err):
			writeError(w, http.StatusBadRequest,
				msgUnsupportedURL+". Supported: "+strings.Join(domain.SupportedPlatforms(), ", "))
		case errors.Is(err, domain.ErrVideoUnavailable), errors.Is(err, domain.ErrExtractionFailed):
			writeError(w, http.StatusUnprocessableEntity, msgUnavailable)
		default:
			h.logger.Error("preview failed", "url", rawURL, "error", err)
			writeError(w, http.StatusInternalServerError, msgPreviewFailed)
		}
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// Profile handles GET /profile - one page of a profile's video listing.
func (h *MediaHandler) Profile(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("profile_url")

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 || page > maxPage {
		writeError(w, http.StatusBadRequest, msgBadParams)
		return
	}
	limit, err := queryInt(r, "limit", 24)
	if err != nil || limit < 1 || limit > maxPageLimit {
		writeError(w, http.StatusBadRequest, msgBadParams)
		return
	}

	listing, err := h.svc.Profile(r.Context(), rawURL, page, limit)
	if err != nil {
		if isURLRejection(err) {
			writeError(w, http.StatusBadRequest, msgUnsupportedURL)
			return
		}
		h.logger.Warn("profile fetch failed", "url", rawURL, "error", err)
		writeError(w, http.StatusUnprocessableEntity, msgProfileFailed)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// Download handles GET /download - fetch a video and stream it back as an
// mp4 attachment.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")

	profile := r.URL.Query().Get("profile")
	if profile == "" {
		profile = "video"
	}
	index, err := queryInt(r, "index", 1)
	if err != nil || index < 1 {
		writeError(w, http.StatusBadRequest, msgBadParams)
		return
	}

	req := service.DownloadRequest{
		URL:     rawURL,
		Profile: profile,
		Index:   index,
		Filter:  r.URL.Query().Get("filter"),
	}

	start := time.Now()

	result, err := h.svc.Download(r.Context(), req)
	if err != nil {
		h.downloadError(w, r, req, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("X-Platform", result.Platform.String())

	written, streamErr := h.responder.Stream(w, result.Workspace, result.ArtifactPath)

	entry := history.Entry{
		Platform:   result.Platform.String(),
		URL:        rawURL,
		Profile:    profile,
		Index:      index,
		Filter:     req.Filter,
		BytesSent:  written,
		DurationMS: time.Since(start).Milliseconds(),
		Client:     h.clientKey(r),
	}

	if streamErr != nil {
		if written == 0 {
			// Nothing reached the client yet, so the response can still
			// turn into an error.
			w.Header().Del("Content-Disposition")
			w.Header().Del("X-Platform")
			h.logger.Error("stream failed before first byte", "url", rawURL, "error", streamErr)
			if errors.Is(streamErr, domain.ErrArtifactMissing) {
				writeError(w, http.StatusInternalServerError, msgArtifactMissing)
			} else {
				writeError(w, http.StatusInternalServerError, msgDownloadFailed)
			}

			entry.Outcome = history.OutcomeFailed
			entry.Detail = streamErr.Error()
			h.svc.RecordOutcome(entry)
			return
		}

		// Mid-stream failure, usually the client going away. The status
		// line is long gone; just journal it.
		h.logger.Warn("stream interrupted",
			"url", rawURL,
			"written", written,
			"error", streamErr,
		)
		entry.Outcome = history.OutcomeAborted
		entry.Detail = streamErr.Error()
		h.svc.RecordOutcome(entry)
		return
	}

	entry.Outcome = history.OutcomeCompleted
	h.svc.RecordOutcome(entry)
}

// downloadError maps a failed download preparation onto a response and a
// journal entry.
func (h *MediaHandler) downloadError(w http.ResponseWriter, r *http.Request, req service.DownloadRequest, err error) {
	switch {
	case isURLRejection(err):
		writeError(w, http.StatusBadRequest, msgUnsupportedURL)
		return
	case errors.Is(err, domain.ErrUnknownFilter):
		writeError(w, http.StatusBadRequest,
			"Unknown filter. Supported filters: "+strings.Join(transcode.Filters(), ", "))
		return
	case errors.Is(err, domain.ErrFilterUnavailable):
		writeError(w, http.StatusBadRequest, msgFiltersDisabled)
		return
	}

	h.journalFailure(r, req, err)

	switch {
	case errors.Is(err, domain.ErrVideoUnavailable),
		errors.Is(err, domain.ErrDownloadFailed),
		errors.Is(err, domain.ErrDownloadTimeout):
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf(msgDownloadRejected, h.maxFileMB))
	case errors.Is(err, domain.ErrArtifactMissing):
		h.logger.Error("download produced no file", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, msgArtifactMissing)
	case errors.Is(err, domain.ErrTranscodeFailed):
		h.logger.Error("filter pass failed", "url", req.URL, "filter", req.Filter, "error", err)
		writeError(w, http.StatusInternalServerError, msgFilterFailed)
	default:
		h.logger.Error("download failed", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, msgDownloadFailed)
	}
}

// journalFailure records a failed attempt for URLs that passed validation.
func (h *MediaHandler) journalFailure(r *http.Request, req service.DownloadRequest, cause error) {
	platform, err := domain.Detect(req.URL)
	if err != nil {
		return
	}

	h.svc.RecordOutcome(history.Entry{
		Platform: platform.String(),
		URL:      req.URL,
		Profile:  req.Profile,
		Index:    req.Index,
		Filter:   req.Filter,
		Outcome:  history.OutcomeFailed,
		Detail:   cause.Error(),
		Client:   h.clientKey(r),
	})
}

// isURLRejection reports whether err means the URL itself was refused.
func isURLRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidURL) ||
		errors.Is(err, domain.ErrBlockedURL) ||
		errors.Is(err, domain.ErrUnsupportedPlatform)
}

// queryInt reads an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
