package model

import (
	"strings"
	"time"
)

// TaskRecord is the persisted outcome of one task
type TaskRecord struct {
	ID         string    // history row id
	TaskID     string    // coordinator task id
	URL        string
	Kind       Kind
	Quality    string
	Format     string
	OutputDir  string
	State      TaskState // terminal state
	ErrorKind  ErrorKind // empty unless State is Failed
	Message    string    // failure message if any
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewTaskRecord builds a record for a finished task from its request and terminal event
func NewTaskRecord(taskID string, req Request, terminal Event, startedAt, finishedAt time.Time) TaskRecord {
	rec := TaskRecord{
		TaskID:     taskID,
		URL:        req.URL,
		Kind:       req.Kind,
		Quality:    req.Quality,
		Format:     req.Format,
		OutputDir:  req.OutputDir,
		State:      TerminalState(terminal),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if f, ok := terminal.(Failed); ok {
		rec.ErrorKind = f.Kind
		rec.Message = f.Message
	}
	return rec
}

// Elapsed returns how long the task ran
func (r TaskRecord) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// GetDisplayTitle returns the last URL path segment, or the URL itself
func (r TaskRecord) GetDisplayTitle() string {
	if r.URL == "" {
		return ""
	}
	trimmed := strings.TrimRight(r.URL, "/")
	parts := strings.FieldsFunc(trimmed, func(c rune) bool {
		return c == '/'
	})
	if len(parts) > 2 {
		return parts[len(parts)-1]
	}
	return r.URL
}
