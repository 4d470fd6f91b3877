package download

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytget/yt-fetcher/internal/model"
	"github.com/ytget/yt-fetcher/internal/platform"
)

// Sentinel errors Fetchers wrap so ClassifyFailure can recognise them.
var (
	ErrCancelled   = errors.New("download cancelled")
	ErrToolMissing = errors.New("required tool not found")
	ErrUnsupported = errors.New("unsupported source")
	ErrExtraction  = errors.New("download failed")
)

// FetchError is a failure reported by yt-dlp. Message is yt-dlp's own text.
type FetchError struct {
	Err     error
	Message string
}

func (e *FetchError) Error() string { return e.Message }

func (e *FetchError) Unwrap() error { return e.Err }

// Sample statuses that carry transfer progress
const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
)

// RawSample is one progress notification as reported by a Fetcher.
// PercentText may contain terminal colour codes and a trailing "%".
type RawSample struct {
	Status          string
	PercentText     string
	DownloadedBytes int64
	TotalBytes      int64
	BytesPerSecond  float64
}

// SampleFunc receives raw samples. A non-nil return value (ErrCancelled once
// the task is cancelled) means the Fetcher must stop and return it.
type SampleFunc func(RawSample) error

// Fetcher performs the actual download. Fetch calls onSample zero or more
// times from the calling goroutine before returning, and returns promptly
// once ctx is cancelled.
type Fetcher interface {
	Fetch(ctx context.Context, req model.Request, onSample SampleFunc) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req model.Request, onSample SampleFunc) error

func (f FetcherFunc) Fetch(ctx context.Context, req model.Request, onSample SampleFunc) error {
	return f(ctx, req, onSample)
}

func carriesProgress(status string) bool {
	return status == "" || status == StatusDownloading || status == StatusFinished
}

// requireExecutables is the default ToolChecker: ffmpeg and ffprobe must both be runnable.
func requireExecutables(tools model.ToolPaths) error {
	if err := platform.ValidateTools(tools.FFmpeg, tools.FFprobe); err != nil {
		return fmt.Errorf("%w: %w", ErrToolMissing, err)
	}
	return nil
}
