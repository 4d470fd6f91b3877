package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ytget/yt-fetcher/internal/download"
	"github.com/ytget/yt-fetcher/internal/model"
)

const maxHistoryLimit = 500

// RequestBuilder creates a request for url from the configured defaults
type RequestBuilder func(url string, kind model.Kind) model.Request

// HistoryLister lists finished tasks, most recent first
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]model.TaskRecord, error)
}

// DownloadHandler exposes the coordinator over HTTP.
type DownloadHandler struct {
	downloads  download.Downloader
	newRequest RequestBuilder
	history    HistoryLister
	logger     *slog.Logger
}

// NewDownloadHandler creates a handler. history may be nil when history is disabled.
func NewDownloadHandler(downloads download.Downloader, newRequest RequestBuilder, history HistoryLister, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloads:  downloads,
		newRequest: newRequest,
		history:    history,
		logger:     logger,
	}
}

// StartDownload handles POST /api/downloads.
func (h *DownloadHandler) StartDownload(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := h.newRequest(body.URL, body.Kind)
	if body.Quality != "" {
		req.Quality = model.NormalizeQuality(body.Quality)
	}
	if body.Format != "" {
		req.Format = body.Format
	}
	if body.OutputDir != "" {
		dir, err := resolveOutputDir(req.OutputDir, body.OutputDir)
		if err != nil {
			h.logger.Warn("rejected output directory", "output_dir", body.OutputDir, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.OutputDir = dir
	}

	handle, err := h.downloads.Start(req)
	var invalid *model.InvalidRequestError
	switch {
	case errors.As(err, &invalid):
		h.logger.Warn("validation failed", "field", invalid.Field, "error", invalid.Reason)
		writeError(w, http.StatusBadRequest, invalid.Error())
		return
	case errors.Is(err, download.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to start download", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, StartResponse{
		TaskID:    handle.ID,
		StartedAt: handle.StartedAt,
	})
}

// CancelDownload handles DELETE /api/downloads/current. It is idempotent.
func (h *DownloadHandler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	h.downloads.Cancel()
	writeJSON(w, http.StatusAccepted, toStateResponse(h.downloads.Snapshot()))
}

// CurrentDownload handles GET /api/downloads/current.
func (h *DownloadHandler) CurrentDownload(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStateResponse(h.downloads.Snapshot()))
}

// Events handles GET /api/events by draining the queued events. It never blocks.
func (h *DownloadHandler) Events(w http.ResponseWriter, r *http.Request) {
	events := h.downloads.Drain()
	resp := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, toEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/history?limit=N.
func (h *DownloadHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]HistoryResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toHistoryResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// errOutsideOutputDir is returned for output directories that escape the configured one
var errOutsideOutputDir = errors.New("output_dir must be inside the configured download directory")

// resolveOutputDir places requested under base. Relative paths are joined
// onto base; absolute paths must already be base or below it.
func resolveOutputDir(base, requested string) (string, error) {
	base = filepath.Clean(base)
	dir := requested
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(base, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideOutputDir
	}
	return dir, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
