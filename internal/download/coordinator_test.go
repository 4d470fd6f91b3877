package download

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ytget/yt-fetcher/internal/model"
)

func testRequest() model.Request {
	return model.Request{
		URL:       "https://www.youtube.com/watch?v=test",
		Kind:      model.KindVideo,
		Quality:   "1080",
		Format:    "mp4",
		OutputDir: "/tmp",
		Tools:     model.ToolPaths{FFmpeg: "/usr/bin/ffmpeg", FFprobe: "/usr/bin/ffprobe"},
	}
}

func toolsOK(model.ToolPaths) error { return nil }

func newTestCoordinator(f Fetcher, opts ...Option) *Coordinator {
	return NewCoordinator(f, append([]Option{WithToolChecker(toolsOK)}, opts...)...)
}

// emitting returns a fetcher that reports each percent text and then returns result
func emitting(result error, percents ...string) Fetcher {
	return FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		for _, p := range percents {
			if err := onSample(RawSample{Status: StatusDownloading, PercentText: p}); err != nil {
				return err
			}
		}
		return result
	})
}

// blocking returns a fetcher that waits for cancellation and then fails with a process error
func blocking() Fetcher {
	return FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		<-ctx.Done()
		return errors.New("signal: killed")
	})
}

func waitDone(t *testing.T, h *TaskHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("Task %s did not finish", h.ID)
	}
}

func percents(t *testing.T, events []model.Event) []float64 {
	t.Helper()
	var out []float64
	for _, ev := range events {
		if p, ok := ev.(model.Progress); ok {
			out = append(out, p.Percent)
		}
	}
	return out
}

func assertSingleTerminalLast(t *testing.T, events []model.Event) model.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("Expected at least one event")
	}
	for i, ev := range events {
		if ev.Terminal() && i != len(events)-1 {
			t.Fatalf("Terminal event %T at position %d of %d", ev, i, len(events))
		}
	}
	last := events[len(events)-1]
	if !last.Terminal() {
		t.Fatalf("Expected last event to be terminal, got %T", last)
	}
	return last
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCoordinator_CompletesWithProgress(t *testing.T) {
	c := newTestCoordinator(emitting(nil, "10.0%", "55.5%", "100.0%"))

	h, err := c.Start(testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasPrefix(h.ID, TaskIDPrefix) {
		t.Errorf("Expected task id with prefix %s, got %s", TaskIDPrefix, h.ID)
	}
	waitDone(t, h)

	events := c.Drain()
	if got := percents(t, events); !equalFloats(got, []float64{10.0, 55.5, 100.0}) {
		t.Errorf("Expected percents [10 55.5 100], got %v", got)
	}
	if _, ok := assertSingleTerminalLast(t, events).(model.Completed); !ok {
		t.Errorf("Expected Completed, got %T", events[len(events)-1])
	}
	if c.CurrentState() != model.TaskStateIdle {
		t.Errorf("Expected Idle after completion, got %s", c.CurrentState())
	}
	if s := c.Snapshot(); s.LastOutcome != model.TaskStateCompleted || s.TaskID != h.ID {
		t.Errorf("Unexpected snapshot %+v", s)
	}
}

func TestCoordinator_CancelBetweenSamples(t *testing.T) {
	emitted := make(chan struct{})
	proceed := make(chan struct{})
	var secondDelivered atomic.Bool

	fetcher := FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		if err := onSample(RawSample{PercentText: "10.0%"}); err != nil {
			return err
		}
		close(emitted)
		<-proceed
		if err := onSample(RawSample{PercentText: "55.5%"}); err != nil {
			return err
		}
		secondDelivered.Store(true)
		return nil
	})

	c := newTestCoordinator(fetcher)
	h, err := c.Start(testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	<-emitted
	c.Cancel()
	close(proceed)
	waitDone(t, h)

	events := c.Drain()
	if got := percents(t, events); !equalFloats(got, []float64{10.0}) {
		t.Errorf("Expected only the first progress event, got %v", got)
	}
	if _, ok := assertSingleTerminalLast(t, events).(model.Cancelled); !ok {
		t.Errorf("Expected Cancelled, got %T", events[len(events)-1])
	}
	if secondDelivered.Load() {
		t.Error("Expected the second sample to be rejected")
	}
}

func TestCoordinator_FailureBeforeAnySample(t *testing.T) {
	c := newTestCoordinator(emitting(errors.New("HTTP 404")))

	h, _ := c.Start(testRequest())
	waitDone(t, h)

	events := c.Drain()
	if len(events) != 1 {
		t.Fatalf("Expected a single event, got %d", len(events))
	}
	failed, ok := events[0].(model.Failed)
	if !ok {
		t.Fatalf("Expected Failed, got %T", events[0])
	}
	want := model.Failed{Kind: model.ErrorKindNetworkOrExtraction, Message: "HTTP 404"}
	if failed != want {
		t.Errorf("Expected %+v, got %+v", want, failed)
	}
}

func TestCoordinator_InvalidToolsNeverReachFetcher(t *testing.T) {
	var called atomic.Bool
	fetcher := FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		called.Store(true)
		return nil
	})

	c := NewCoordinator(fetcher)
	req := testRequest()
	req.Tools = model.ToolPaths{FFmpeg: "/nonexistent/ffmpeg", FFprobe: "/nonexistent/ffprobe"}

	h, err := c.Start(req)
	if err != nil {
		t.Fatalf("Expected tool problems to surface as an event, got %v", err)
	}
	waitDone(t, h)

	if called.Load() {
		t.Error("Expected fetcher not to be invoked")
	}
	events := c.Drain()
	if len(events) != 1 {
		t.Fatalf("Expected a single event, got %d", len(events))
	}
	want := model.Failed{Kind: model.ErrorKindToolMissing, Message: ToolMissingMessage}
	if events[0] != want {
		t.Errorf("Expected %+v, got %+v", want, events[0])
	}
}

func TestCoordinator_PercentNeverDecreases(t *testing.T) {
	c := newTestCoordinator(emitting(nil, "10%", "50%", "30%", "80%", "20%", "150%"))

	h, _ := c.Start(testRequest())
	waitDone(t, h)

	got := percents(t, c.Drain())
	want := []float64{10, 50, 50, 80, 80, 100}
	if !equalFloats(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestCoordinator_MalformedSamplesDropped(t *testing.T) {
	c := newTestCoordinator(emitting(nil, "abc", "\x1b[0;94m 42.0%\x1b[0m", "NaN", "", "Inf%"))

	h, _ := c.Start(testRequest())
	waitDone(t, h)

	events := c.Drain()
	if got := percents(t, events); !equalFloats(got, []float64{42.0}) {
		t.Errorf("Expected only the parseable sample, got %v", got)
	}
	if _, ok := assertSingleTerminalLast(t, events).(model.Completed); !ok {
		t.Error("Expected malformed samples not to fail the task")
	}
}

func TestCoordinator_IgnoresNonProgressStatuses(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		_ = onSample(RawSample{Status: "starting", PercentText: "0%"})
		_ = onSample(RawSample{Status: StatusDownloading, PercentText: "40%"})
		_ = onSample(RawSample{Status: "post_processing", PercentText: "oops"})
		_ = onSample(RawSample{Status: StatusFinished, PercentText: "100%"})
		return nil
	})
	c := newTestCoordinator(fetcher)

	h, _ := c.Start(testRequest())
	waitDone(t, h)

	if got := percents(t, c.Drain()); !equalFloats(got, []float64{40, 100}) {
		t.Errorf("Expected [40 100], got %v", got)
	}
}

func TestCoordinator_CancelBeforeAnySample(t *testing.T) {
	begin := make(chan struct{})
	c := newTestCoordinator(FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		<-begin
		for _, p := range []string{"10%", "20%"} {
			if err := onSample(RawSample{PercentText: p}); err != nil {
				return err
			}
		}
		return nil
	}))

	h, _ := c.Start(testRequest())
	c.Cancel()
	c.Cancel()
	close(begin)
	waitDone(t, h)

	events := c.Drain()
	if len(events) != 1 {
		t.Fatalf("Expected exactly one event, got %d: %v", len(events), events)
	}
	if _, ok := events[0].(model.Cancelled); !ok {
		t.Errorf("Expected Cancelled, got %T", events[0])
	}
}

func TestCoordinator_FetcherErrorAfterCancelIsCancelled(t *testing.T) {
	c := newTestCoordinator(blocking())

	h, _ := c.Start(testRequest())
	c.Cancel()
	waitDone(t, h)

	events := c.Drain()
	if _, ok := assertSingleTerminalLast(t, events).(model.Cancelled); !ok {
		t.Errorf("Expected Cancelled, got %T", events[len(events)-1])
	}
}

func TestCoordinator_StartWhileRunning(t *testing.T) {
	c := newTestCoordinator(blocking())

	h, err := c.Start(testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if c.CurrentState() != model.TaskStateRunning {
		t.Errorf("Expected Running, got %s", c.CurrentState())
	}

	if _, err := c.Start(testRequest()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
	if s := c.Snapshot(); s.TaskID != h.ID {
		t.Errorf("Expected in-flight task %s to remain current, got %s", h.ID, s.TaskID)
	}

	c.Cancel()
	waitDone(t, h)

	events := c.Drain()
	if len(events) != 1 {
		t.Fatalf("Expected only the terminal event, got %v", events)
	}
}

func TestCoordinator_ConcurrentStartsLaunchOneTask(t *testing.T) {
	c := newTestCoordinator(blocking())

	var (
		wg      sync.WaitGroup
		started atomic.Int32
		handles = make(chan *TaskHandle, 16)
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.Start(testRequest())
			if err == nil {
				started.Add(1)
				handles <- h
			}
		}()
	}
	wg.Wait()
	close(handles)

	if started.Load() != 1 {
		t.Fatalf("Expected exactly one task to start, got %d", started.Load())
	}
	c.Cancel()
	waitDone(t, <-handles)
}

func TestCoordinator_NewTaskDiscardsOldEvents(t *testing.T) {
	c := newTestCoordinator(emitting(nil, "10%"))
	first, _ := c.Start(testRequest())
	waitDone(t, first)

	c.fetcher = emitting(nil, "77%")
	second, err := c.Start(testRequest())
	if err != nil {
		t.Fatalf("Expected second start to succeed, got %v", err)
	}
	waitDone(t, second)

	events := c.Drain()
	if got := percents(t, events); !equalFloats(got, []float64{77}) {
		t.Errorf("Expected only events of the second task, got %v", got)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(events))
	}
}

func TestCoordinator_PollAfterFinishReturnsRemainingEvents(t *testing.T) {
	c := newTestCoordinator(emitting(nil, "10%"))
	h, _ := c.Start(testRequest())
	waitDone(t, h)

	ev, ok := c.Poll()
	if !ok {
		t.Fatal("Expected the progress event")
	}
	if _, isProgress := ev.(model.Progress); !isProgress {
		t.Errorf("Expected Progress first, got %T", ev)
	}
	ev, ok = c.Poll()
	if !ok {
		t.Fatal("Expected the terminal event")
	}
	if _, isCompleted := ev.(model.Completed); !isCompleted {
		t.Errorf("Expected Completed, got %T", ev)
	}
	if _, ok := c.Poll(); ok {
		t.Error("Expected no more events")
	}
}

func TestCoordinator_PollWhenIdle(t *testing.T) {
	c := newTestCoordinator(emitting(nil))

	for i := 0; i < 3; i++ {
		if ev, ok := c.Poll(); ok {
			t.Errorf("Expected nothing while idle, got %v", ev)
		}
	}
	if c.CurrentState() != model.TaskStateIdle {
		t.Errorf("Expected Idle, got %s", c.CurrentState())
	}
	c.Cancel()
}

func TestCoordinator_InvalidRequest(t *testing.T) {
	c := newTestCoordinator(emitting(nil))
	req := testRequest()
	req.URL = "not a url"

	h, err := c.Start(req)
	if h != nil {
		t.Error("Expected no handle for an invalid request")
	}
	var invalid *model.InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected *model.InvalidRequestError, got %v", err)
	}
	if c.CurrentState() != model.TaskStateIdle {
		t.Errorf("Expected Idle, got %s", c.CurrentState())
	}
}

func TestCoordinator_FetcherPanicBecomesUnknownFailure(t *testing.T) {
	c := newTestCoordinator(FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		panic("extractor exploded")
	}))

	h, _ := c.Start(testRequest())
	waitDone(t, h)

	events := c.Drain()
	failed, ok := assertSingleTerminalLast(t, events).(model.Failed)
	if !ok {
		t.Fatalf("Expected Failed, got %T", events[len(events)-1])
	}
	if failed.Kind != model.ErrorKindUnknown {
		t.Errorf("Expected Unknown, got %s", failed.Kind)
	}
	if !strings.HasPrefix(failed.Message, UnknownErrorPrefix) || !strings.Contains(failed.Message, "extractor exploded") {
		t.Errorf("Unexpected message %q", failed.Message)
	}
	if c.CurrentState() != model.TaskStateIdle {
		t.Errorf("Expected Idle after panic, got %s", c.CurrentState())
	}
}

func TestCoordinator_LateCancelIsIgnored(t *testing.T) {
	c := newTestCoordinator(emitting(nil, "100%"))
	h, _ := c.Start(testRequest())
	waitDone(t, h)

	c.Cancel()

	events := c.Drain()
	if _, ok := assertSingleTerminalLast(t, events).(model.Completed); !ok {
		t.Errorf("Expected Completed, got %T", events[len(events)-1])
	}
}

type recorderFunc func(ctx context.Context, rec model.TaskRecord) error

func (f recorderFunc) Record(ctx context.Context, rec model.TaskRecord) error { return f(ctx, rec) }

func TestCoordinator_RecordsOutcome(t *testing.T) {
	var (
		mu      sync.Mutex
		records []model.TaskRecord
	)
	recorder := recorderFunc(func(ctx context.Context, rec model.TaskRecord) error {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, rec)
		return nil
	})

	c := newTestCoordinator(emitting(errors.New("ERROR: Unsupported URL: https://example.com")), WithRecorder(recorder))
	h, _ := c.Start(testRequest())
	waitDone(t, h)

	mu.Lock()
	defer mu.Unlock()
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.TaskID != h.ID || rec.State != model.TaskStateFailed || rec.ErrorKind != model.ErrorKindUnsupported {
		t.Errorf("Unexpected record %+v", rec)
	}
	if rec.FinishedAt.Before(rec.StartedAt) {
		t.Error("Expected FinishedAt after StartedAt")
	}
}

func TestCoordinator_RateOnlyWhenKnown(t *testing.T) {
	c := newTestCoordinator(FetcherFunc(func(ctx context.Context, req model.Request, onSample SampleFunc) error {
		_ = onSample(RawSample{PercentText: "10%", DownloadedBytes: 100, TotalBytes: 1000})
		_ = onSample(RawSample{PercentText: "20%", DownloadedBytes: 200, TotalBytes: 1000, BytesPerSecond: 100})
		return nil
	}))
	h, _ := c.Start(testRequest())
	waitDone(t, h)

	events := c.Drain()
	first := events[0].(model.Progress)
	second := events[1].(model.Progress)
	if first.Rate != nil {
		t.Errorf("Expected no rate without speed, got %+v", first.Rate)
	}
	if second.Rate == nil {
		t.Fatal("Expected rate when speed and sizes are known")
	}
	if second.Rate.Remaining != 8*time.Second {
		t.Errorf("Expected 8s remaining, got %s", second.Rate.Remaining)
	}
}

func TestCoordinator_SmallBufferKeepsTerminal(t *testing.T) {
	c := newTestCoordinator(emitting(nil, "1%", "2%", "3%", "4%", "5%"), WithEventBuffer(2))
	h, _ := c.Start(testRequest())
	waitDone(t, h)

	events := c.Drain()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if got := percents(t, events); !equalFloats(got, []float64{5}) {
		t.Errorf("Expected newest progress to survive, got %v", got)
	}
	assertSingleTerminalLast(t, events)
}

func TestCoordinator_Shutdown(t *testing.T) {
	c := newTestCoordinator(blocking())
	if err := c.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected idle shutdown to succeed, got %v", err)
	}

	h, _ := c.Start(testRequest())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Expected task to be finished after Shutdown")
	}
	if c.CurrentState() != model.TaskStateIdle {
		t.Errorf("Expected Idle, got %s", c.CurrentState())
	}
}

func TestCoordinator_ShutdownWaitsForRecorder(t *testing.T) {
	var recorded atomic.Bool
	release := make(chan struct{})
	recorder := recorderFunc(func(ctx context.Context, rec model.TaskRecord) error {
		<-release
		recorded.Store(true)
		return nil
	})

	c := newTestCoordinator(emitting(nil, "50%"), WithRecorder(recorder))
	h, err := c.Start(testRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for c.CurrentState() != model.TaskStateIdle {
		if time.Now().After(deadline) {
			t.Fatal("Task did not reach Idle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	shutdown := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown <- c.Shutdown(ctx)
	}()

	select {
	case err := <-shutdown:
		t.Fatalf("Shutdown returned before the outcome was recorded: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	if err := <-shutdown; err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !recorded.Load() {
		t.Error("Expected outcome to be recorded before Shutdown returned")
	}
	waitDone(t, h)
}
