package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ytget/yt-fetcher/internal/model"
)

// DefaultProgressInterval is how often go-ytdlp reports progress
const DefaultProgressInterval = 500 * time.Millisecond

// LibraryFetcher downloads through github.com/lrstanley/go-ytdlp.
type LibraryFetcher struct {
	interval   time.Duration
	executable string
	logger     *slog.Logger
}

// NewLibraryFetcher creates a go-ytdlp backed fetcher. An empty executable
// uses the request's yt-dlp path, or go-ytdlp's own resolution when unset.
func NewLibraryFetcher(interval time.Duration, executable string, logger *slog.Logger) *LibraryFetcher {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LibraryFetcher{interval: interval, executable: executable, logger: logger}
}

// Fetch downloads req and forwards go-ytdlp progress updates to onSample.
func (f *LibraryFetcher) Fetch(ctx context.Context, req model.Request, onSample SampleFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		sampleErr error
		returned  bool
	)

	dl := f.command(req)
	dl.ProgressFunc(f.interval, func(update ytdlp.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()

		if returned || sampleErr != nil {
			return
		}
		if err := onSample(sampleFromUpdate(&update)); err != nil {
			sampleErr = err
			cancel()
		}
	})

	res, err := dl.Run(ctx, req.URL)

	mu.Lock()
	returned = true
	stopErr := sampleErr
	mu.Unlock()

	if stopErr != nil {
		return stopErr
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}

	f.logger.Debug("yt-dlp run failed", "url", req.URL, "error", err)
	var stderr string
	if res != nil {
		stderr = res.Stderr
	}
	return failureFromOutput(errorLines(stderr), err)
}

// command configures yt-dlp for req
func (f *LibraryFetcher) command(req model.Request) *ytdlp.Command {
	dl := ytdlp.New().
		NoPlaylist().
		RestrictFilenames().
		Format(FormatSelector(req)).
		Output(OutputTemplate(req))

	if exe := f.resolveExecutable(req); exe != "" {
		dl.SetExecutable(exe)
	}
	if loc := FFmpegLocation(req.Tools); loc != "" {
		dl.FFmpegLocation(loc)
	}
	if req.Kind == model.KindAudio {
		dl.ExtractAudio().
			AudioFormat(req.Format).
			AudioQuality(AudioQuality(req.Quality))
	} else {
		dl.MergeOutputFormat(req.Format)
	}
	return dl
}

func (f *LibraryFetcher) resolveExecutable(req model.Request) string {
	if f.executable != "" {
		return f.executable
	}
	return req.Tools.YTDLP
}

// sampleFromUpdate converts a go-ytdlp progress update into a raw sample
func sampleFromUpdate(update *ytdlp.ProgressUpdate) RawSample {
	sample := RawSample{
		Status:          string(update.Status),
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
	}

	if update.TotalBytes > 0 {
		percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
		sample.PercentText = fmt.Sprintf("%.1f%%", percent)
	}

	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started)
		if elapsed.Seconds() > 0 {
			sample.BytesPerSecond = float64(update.DownloadedBytes) / elapsed.Seconds()
		}
	}
	return sample
}
