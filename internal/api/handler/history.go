package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ripclip/ripclip/internal/domain"
	"github.com/ripclip/ripclip/internal/history"
	"github.com/ripclip/ripclip/internal/service"
)

// HistoryHandler serves the download journal.
type HistoryHandler struct {
	svc    *service.MediaService
	logger *slog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(svc *service.MediaService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		svc:    svc,
		logger: logger,
	}
}

// HistoryResponse is the JSON payload for journal listings.
type HistoryResponse struct {
	Entries  []history.Entry           `json:"entries"`
	Total    int                       `json:"total"`
	Limit    int                       `json:"limit"`
	Offset   int                       `json:"offset"`
	Outcomes map[history.Outcome]int64 `json:"outcomes"`
}

// Recent handles GET /history - recent download attempts, newest first.
func (h *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, msgBadParams)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, msgBadParams)
		return
	}

	entries, total, err := h.svc.History(r.Context(), limit, offset)
	if err != nil {
		if errors.Is(err, domain.ErrHistoryDisabled) {
			writeError(w, http.StatusNotFound, "History is not enabled")
			return
		}
		h.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	outcomes, err := h.svc.HistoryStats(r.Context())
	if err != nil {
		h.logger.Error("history stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Entries:  entries,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		Outcomes: outcomes,
	})
}
