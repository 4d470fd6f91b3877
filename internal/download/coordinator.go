package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ytget/yt-fetcher/internal/metrics"
	"github.com/ytget/yt-fetcher/internal/model"
)

const (
	// TaskIDPrefix prefixes every task id
	TaskIDPrefix = "task-"

	// RecordTimeout bounds how long a finished task waits for its Recorder
	RecordTimeout = 5 * time.Second
)

// ErrAlreadyRunning is returned by Start while another task is running.
var ErrAlreadyRunning = errors.New("a download is already running")

// TaskHandle identifies a started task.
type TaskHandle struct {
	ID        string
	Request   model.Request
	StartedAt time.Time

	done chan struct{}
}

// Done is closed once the task has pushed its terminal event and its
// outcome has been recorded.
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

// Snapshot is a read-only view of the coordinator.
type Snapshot struct {
	State       model.TaskState // Running or Idle
	TaskID      string          // current or last task, empty before the first Start
	URL         string
	StartedAt   time.Time
	LastOutcome model.TaskState // terminal state of the last finished task
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventBuffer sets the per-task event queue capacity.
func WithEventBuffer(n int) Option {
	return func(c *Coordinator) {
		c.bufferSize = clampEventBuffer(n)
	}
}

// WithToolChecker replaces the executable check run before every fetch.
func WithToolChecker(check ToolChecker) Option {
	return func(c *Coordinator) {
		if check != nil {
			c.checkTools = check
		}
	}
}

// WithRecorder stores the outcome of every finished task.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// Coordinator runs at most one download at a time and exposes its events
// to a single consumer.
type Coordinator struct {
	fetcher    Fetcher
	logger     *slog.Logger
	checkTools ToolChecker
	recorder   Recorder
	bufferSize int

	mu          sync.Mutex
	state       model.TaskState
	current     *TaskHandle
	token       *Token
	queue       *EventQueue
	lastOutcome model.TaskState
}

// NewCoordinator creates an idle coordinator that downloads through fetcher.
func NewCoordinator(fetcher Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:    fetcher,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		checkTools: requireExecutables,
		bufferSize: DefaultEventBuffer,
		state:      model.TaskStateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start validates req and launches a background task for it. It returns
// immediately; progress and the outcome are delivered through Poll.
func (c *Coordinator) Start(req model.Request) (*TaskHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == model.TaskStateRunning {
		metrics.TasksRejected.WithLabelValues("already_running").Inc()
		return nil, ErrAlreadyRunning
	}
	if err := req.Validate(); err != nil {
		metrics.TasksRejected.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	handle := &TaskHandle{
		ID:        generateTaskID(),
		Request:   req,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	token := NewToken(context.Background())
	queue := NewEventQueue(c.bufferSize, c.onEventDropped)

	c.state = model.TaskStateRunning
	c.current = handle
	c.token = token
	c.queue = queue

	metrics.TasksStarted.Inc()
	c.logger.Info("download started",
		"task_id", handle.ID,
		"url", req.URL,
		"kind", req.Kind,
		"quality", req.Quality,
		"format", req.Format)

	go c.run(handle, token, queue)
	return handle, nil
}

// Cancel sets the running task's token. It does nothing when idle, and a
// task that has already produced its outcome ignores it.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.TaskStateRunning || c.token == nil {
		return
	}
	if !c.token.IsSet() {
		c.logger.Info("download cancel requested", "task_id", c.current.ID)
	}
	c.token.Set()
}

// Poll returns the next event of the current or last task.
func (c *Coordinator) Poll() (model.Event, bool) {
	q := c.currentQueue()
	if q == nil {
		return nil, false
	}
	return q.Poll()
}

// Drain returns all events queued right now.
func (c *Coordinator) Drain() []model.Event {
	q := c.currentQueue()
	if q == nil {
		return nil
	}
	return q.Drain()
}

// CurrentState returns Running while a task is in flight, Idle otherwise.
func (c *Coordinator) CurrentState() model.TaskState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot describes the current or most recent task.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{State: c.state, LastOutcome: c.lastOutcome}
	if c.current != nil {
		s.TaskID = c.current.ID
		s.URL = c.current.Request.URL
		s.StartedAt = c.current.StartedAt
	}
	return s
}

// Shutdown cancels the running task and waits for the current or last task
// to finish, including its Recorder call, or for ctx to expire.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	handle := c.current
	c.mu.Unlock()

	if handle == nil {
		return nil
	}
	c.Cancel()

	select {
	case <-handle.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for task %s: %w", handle.ID, ctx.Err())
	}
}

func (c *Coordinator) currentQueue() *EventQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue
}

// run executes one task and publishes its single terminal event.
func (c *Coordinator) run(handle *TaskHandle, token *Token, queue *EventQueue) {
	defer close(handle.done)

	logger := c.logger.With("task_id", handle.ID)
	terminal, last := c.execute(handle, token, queue, logger)
	finishedAt := time.Now()
	token.release()

	c.mu.Lock()
	queue.Push(terminal)
	if c.current == handle {
		c.state = model.TaskStateIdle
		c.lastOutcome = model.TerminalState(terminal)
	}
	c.mu.Unlock()

	c.observe(terminal, last, finishedAt.Sub(handle.StartedAt), logger)
	c.record(model.NewTaskRecord(handle.ID, handle.Request, terminal, handle.StartedAt, finishedAt), logger)
}

// execute runs the tool check and the fetcher. It returns the terminal
// event and the last Progress event that was produced.
func (c *Coordinator) execute(handle *TaskHandle, token *Token, queue *EventQueue, logger *slog.Logger) (terminal model.Event, last model.Progress) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("fetcher panicked", "panic", r)
			terminal = model.Failed{Kind: model.ErrorKindUnknown, Message: UnknownErrorPrefix + panicError(r).Error()}
		}
	}()

	if token.IsSet() {
		return model.Cancelled{}, last
	}
	if err := c.checkTools(handle.Request.Tools); err != nil {
		logger.Warn("required tools unavailable", "error", err)
		return model.Failed{Kind: model.ErrorKindToolMissing, Message: ToolMissingMessage}, last
	}

	norm := &normalizer{}
	onSample := func(raw RawSample) error {
		if token.IsSet() {
			return ErrCancelled
		}
		if !carriesProgress(raw.Status) {
			return nil
		}
		p, err := norm.normalize(raw)
		if err != nil {
			metrics.SamplesDropped.Inc()
			logger.Debug("dropping progress sample", "percent_text", raw.PercentText, "status", raw.Status, "error", err)
			return nil
		}
		last = p
		queue.Push(p)
		return nil
	}

	err := c.fetcher.Fetch(token.Context(), handle.Request, onSample)
	return outcome(err, token), last
}

// outcome maps the fetcher result to a terminal event.
func outcome(err error, token *Token) model.Event {
	if err == nil {
		return model.Completed{}
	}
	if token.IsSet() {
		return model.Cancelled{}
	}
	f := failedEvent(err)
	if f.Kind == model.ErrorKindCancelled {
		return model.Cancelled{}
	}
	return f
}

func (c *Coordinator) observe(terminal model.Event, last model.Progress, elapsed time.Duration, logger *slog.Logger) {
	metrics.TaskDuration.WithLabelValues(model.TerminalState(terminal).String()).Observe(elapsed.Seconds())

	switch ev := terminal.(type) {
	case model.Completed:
		metrics.TasksCompleted.Inc()
		metrics.BytesDownloaded.Add(float64(last.DownloadedBytes))
		logger.Info("download completed", "elapsed", elapsed.Round(time.Millisecond))
	case model.Cancelled:
		metrics.TasksCancelled.Inc()
		logger.Info("download cancelled", "elapsed", elapsed.Round(time.Millisecond))
	case model.Failed:
		metrics.TasksFailed.WithLabelValues(ev.Kind.String()).Inc()
		logger.Error("download failed", "kind", ev.Kind, "error", ev.Message)
	}
}

func (c *Coordinator) record(rec model.TaskRecord, logger *slog.Logger) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), RecordTimeout)
	defer cancel()

	if err := c.recorder.Record(ctx, rec); err != nil {
		logger.Warn("failed to record task outcome", "error", err)
	}
}

func (c *Coordinator) onEventDropped(model.Event) {
	metrics.EventsDropped.Inc()
}

// generateTaskID generates a unique task ID using UUID v7 so ids sort by start time
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
