package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ytget/yt-fetcher/internal/model"
	"github.com/ytget/yt-fetcher/internal/platform"
)

// Process shutdown grace period after cancellation
const execWaitDelay = 5 * time.Second

// ExecFetcher drives the yt-dlp binary directly and parses its progress lines.
type ExecFetcher struct {
	binary string
	logger *slog.Logger
}

// NewExecFetcher creates a fetcher running binary. An empty binary falls
// back to the request's tool path, then to yt-dlp on PATH.
func NewExecFetcher(binary string, logger *slog.Logger) *ExecFetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecFetcher{binary: binary, logger: logger}
}

// Fetch runs yt-dlp for req and reports every progress line to onSample.
func (f *ExecFetcher) Fetch(ctx context.Context, req model.Request, onSample SampleFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	binary := f.resolveBinary(req)
	args := BuildArgs(req)
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = execWaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	f.logger.Debug("starting yt-dlp", "binary", binary, "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: yt-dlp: %w", ErrToolMissing, err)
		}
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	var (
		wg       sync.WaitGroup
		errLines []string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errLines = f.collectErrors(stderr)
	}()

	sampleErr := f.monitorProgress(stdout, onSample, cancel)
	wg.Wait()
	waitErr := cmd.Wait()

	switch {
	case sampleErr != nil:
		return sampleErr
	case waitErr == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return failureFromOutput(errLines, waitErr)
}

func (f *ExecFetcher) resolveBinary(req model.Request) string {
	if f.binary != "" {
		return f.binary
	}
	if req.Tools.YTDLP != "" {
		return req.Tools.YTDLP
	}
	return platform.YTDLPBinary
}

// monitorProgress reads stdout until EOF. Once onSample fails the process
// is cancelled and the rest of the output is discarded.
func (f *ExecFetcher) monitorProgress(stdout io.Reader, onSample SampleFunc, cancel context.CancelFunc) error {
	var sampleErr error
	scanner := bufio.NewScanner(stdout)

	for scanner.Scan() {
		if sampleErr != nil {
			continue
		}
		line := scanner.Text()
		sample, ok := parseProgressLine(line)
		if !ok {
			f.logger.Debug("yt-dlp", "line", line)
			continue
		}
		if err := onSample(sample); err != nil {
			sampleErr = err
			cancel()
		}
	}
	return sampleErr
}

// collectErrors keeps the ERROR: lines printed on stderr
func (f *ExecFetcher) collectErrors(stderr io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, ErrorLinePrefix) {
			lines = append(lines, line)
			continue
		}
		if line != "" {
			f.logger.Debug("yt-dlp stderr", "line", line)
		}
	}
	return lines
}
