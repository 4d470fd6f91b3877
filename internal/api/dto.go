package api

import (
	"time"

	"github.com/ytget/yt-fetcher/internal/download"
	"github.com/ytget/yt-fetcher/internal/model"
)

// StartRequest is the body of POST /api/downloads. Empty fields take the configured defaults.
// OutputDir is resolved inside the configured download directory.
type StartRequest struct {
	URL       string     `json:"url"`
	Kind      model.Kind `json:"kind,omitempty"`
	Quality   string     `json:"quality,omitempty"`
	Format    string     `json:"format,omitempty"`
	OutputDir string     `json:"output_dir,omitempty"`
}

type StartResponse struct {
	TaskID    string    `json:"task_id"`
	StartedAt time.Time `json:"started_at"`
}

type StateResponse struct {
	State       model.TaskState `json:"state"`
	TaskID      string          `json:"task_id,omitempty"`
	URL         string          `json:"url,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	LastOutcome model.TaskState `json:"last_outcome,omitempty"`
}

// EventResponse is the JSON form of a model.Event
type EventResponse struct {
	Type             model.EventType `json:"type"`
	Percent          *float64        `json:"percent,omitempty"`
	DownloadedBytes  int64           `json:"downloaded_bytes,omitempty"`
	TotalBytes       int64           `json:"total_bytes,omitempty"`
	BytesPerSecond   *float64        `json:"bytes_per_second,omitempty"`
	RemainingSeconds *float64        `json:"remaining_seconds,omitempty"`
	ErrorKind        model.ErrorKind `json:"error_kind,omitempty"`
	Message          string          `json:"message,omitempty"`
}

type HistoryResponse struct {
	ID         string          `json:"id"`
	TaskID     string          `json:"task_id"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	Kind       model.Kind      `json:"kind"`
	Quality    string          `json:"quality"`
	Format     string          `json:"format"`
	State      model.TaskState `json:"state"`
	ErrorKind  model.ErrorKind `json:"error_kind,omitempty"`
	Message    string          `json:"message,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Seconds    float64         `json:"elapsed_seconds"`
}

func toEventResponse(ev model.Event) EventResponse {
	resp := EventResponse{Type: ev.Type()}
	switch e := ev.(type) {
	case model.Progress:
		percent := e.Percent
		resp.Percent = &percent
		resp.DownloadedBytes = e.DownloadedBytes
		resp.TotalBytes = e.TotalBytes
		if e.Rate != nil {
			speed := e.Rate.BytesPerSecond
			remaining := e.Rate.Remaining.Seconds()
			resp.BytesPerSecond = &speed
			resp.RemainingSeconds = &remaining
		}
	case model.Failed:
		resp.ErrorKind = e.Kind
		resp.Message = e.Message
	}
	return resp
}

func toStateResponse(s download.Snapshot) StateResponse {
	resp := StateResponse{
		State:       s.State,
		TaskID:      s.TaskID,
		URL:         s.URL,
		LastOutcome: s.LastOutcome,
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		resp.StartedAt = &started
	}
	return resp
}

func toHistoryResponse(rec model.TaskRecord) HistoryResponse {
	return HistoryResponse{
		ID:         rec.ID,
		TaskID:     rec.TaskID,
		URL:        rec.URL,
		Title:      rec.GetDisplayTitle(),
		Kind:       rec.Kind,
		Quality:    rec.Quality,
		Format:     rec.Format,
		State:      rec.State,
		ErrorKind:  rec.ErrorKind,
		Message:    rec.Message,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Seconds:    rec.Elapsed().Seconds(),
	}
}
