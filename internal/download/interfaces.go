package download

import (
	"context"

	"github.com/ytget/yt-fetcher/internal/model"
)

// Downloader defines the interface a consumer loop drives.
type Downloader interface {
	// Start launches a task for req. It fails with ErrAlreadyRunning while a
	// task is running and with *model.InvalidRequestError for malformed requests.
	Start(req model.Request) (*TaskHandle, error)

	// Cancel requests a cooperative stop of the running task. Safe to call at any time.
	Cancel()

	// Poll returns the next queued event without blocking.
	Poll() (model.Event, bool)

	// Drain returns every event queued right now without blocking.
	Drain() []model.Event

	// CurrentState returns Running while a task is in flight and Idle otherwise.
	CurrentState() model.TaskState

	// Snapshot describes the current or most recent task.
	Snapshot() Snapshot

	// Shutdown cancels the running task and waits until it has finished.
	Shutdown(ctx context.Context) error
}

// Recorder persists finished tasks.
type Recorder interface {
	Record(ctx context.Context, rec model.TaskRecord) error
}

// ToolChecker validates the external executables a request needs.
type ToolChecker func(tools model.ToolPaths) error

var _ Downloader = (*Coordinator)(nil)
