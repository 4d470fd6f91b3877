package model

import (
	"fmt"
	"strings"
	"time"
)

// EventType tags the members of the Event union
type EventType string

const (
	EventTypeProgress  EventType = "progress"
	EventTypeCompleted EventType = "completed"
	EventTypeCancelled EventType = "cancelled"
	EventTypeFailed    EventType = "failed"
)

// Event is one normalized fact about an in-flight download.
// Exactly one terminal event (Completed, Cancelled or Failed) ends every task.
type Event interface {
	Type() EventType
	Terminal() bool
}

// Progress reports transfer progress. Percent never decreases within a task.
type Progress struct {
	Percent         float64 // 0.0 to 100.0
	DownloadedBytes int64   // 0 if unknown
	TotalBytes      int64   // 0 if unknown
	Rate            *Rate   // nil if speed or sizes are unknown
}

// Rate carries transfer speed and the derived remaining time
type Rate struct {
	BytesPerSecond float64
	Remaining      time.Duration
}

// Completed ends a task that finished successfully
type Completed struct{}

// Cancelled ends a task stopped by the user
type Cancelled struct{}

// Failed ends a task that could not complete
type Failed struct {
	Kind    ErrorKind
	Message string
}

func (Progress) Type() EventType  { return EventTypeProgress }
func (Completed) Type() EventType { return EventTypeCompleted }
func (Cancelled) Type() EventType { return EventTypeCancelled }
func (Failed) Type() EventType    { return EventTypeFailed }

func (Progress) Terminal() bool  { return false }
func (Completed) Terminal() bool { return true }
func (Cancelled) Terminal() bool { return true }
func (Failed) Terminal() bool    { return true }

// TerminalState maps a terminal event to the outcome state it represents.
// Non-terminal events map to TaskStateRunning.
func TerminalState(ev Event) TaskState {
	switch ev.(type) {
	case Completed:
		return TaskStateCompleted
	case Cancelled:
		return TaskStateCancelled
	case Failed:
		return TaskStateFailed
	default:
		return TaskStateRunning
	}
}

// GetRemainingString returns remaining time formatted as hh:mm:ss, or "—" if unknown
func (r *Rate) GetRemainingString() string {
	if r == nil || r.Remaining <= 0 {
		return "—"
	}

	secs := int(r.Remaining.Round(time.Second).Seconds())
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	var b strings.Builder
	if hours > 0 {
		b.WriteString(fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%02d:%02d", minutes, seconds))
	return b.String()
}
