package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ytget/yt-fetcher/internal/download"
	"github.com/ytget/yt-fetcher/internal/model"
	"github.com/ytget/yt-fetcher/internal/platform"
)

const (
	// PollInterval is how often the terminal drains coordinator events
	PollInterval = 100 * time.Millisecond

	// progress bar steps, one per tenth of a percent
	barScale = 10
	barMax   = 100 * barScale
)

type downloadOptions struct {
	audio   bool
	video   bool
	quality string
	format  string
	outDir  string
	reveal  bool
}

func newDownloadCommand(a *app) *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download one URL and show its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDownload(cmd.Context(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.audio, "audio", "a", false, "extract audio only")
	flags.BoolVar(&opts.video, "video", false, "download video")
	flags.StringVarP(&opts.quality, "quality", "q", "", "audio bitrate (128, 192, 320) or video height (720, 1080, 1440, 2160)")
	flags.StringVarP(&opts.format, "format", "f", "", "output container or codec")
	flags.StringVarP(&opts.outDir, "out", "o", "", "output directory")
	flags.BoolVar(&opts.reveal, "reveal", false, "open the output directory when the download completes")
	cmd.MarkFlagsMutuallyExclusive("audio", "video")

	return cmd
}

func (a *app) runDownload(ctx context.Context, url string, opts downloadOptions) error {
	var kind model.Kind
	switch {
	case opts.audio:
		kind = model.KindAudio
	case opts.video:
		kind = model.KindVideo
	}

	req := a.cfg.Request(url, kind)
	if opts.quality != "" {
		req.Quality = model.NormalizeQuality(opts.quality)
	}
	if opts.format != "" {
		req.Format = opts.format
	}
	if opts.outDir != "" {
		req.OutputDir = opts.outDir
	}

	if err := req.Validate(); err != nil {
		fmt.Fprintf(a.errOut, "%s: %v\n", a.texts.GetText(KeyInvalidRequest), err)
		return &exitError{code: ExitFailure}
	}
	if err := platform.CreateDirectoryIfNotExists(req.OutputDir); err != nil {
		return err
	}

	store, err := a.openHistory(ctx)
	if err != nil {
		// history is optional for a single download
		a.logger.Warn("history disabled", "error", err)
	}
	defer closeHistory(store, a.logger)

	coord := a.newCoordinator(store)
	handle, err := coord.Start(req)
	if err != nil {
		var invalid *model.InvalidRequestError
		if errors.As(err, &invalid) {
			fmt.Fprintf(a.errOut, "%s: %v\n", a.texts.GetText(KeyInvalidRequest), err)
			return &exitError{code: ExitFailure}
		}
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newProgressRenderer(a.out, a.texts, req)
	state := watch(sigCtx, coord, handle, r)

	if state == model.TaskStateCompleted && opts.reveal {
		if err := platform.OpenDirectory(req.OutputDir); err != nil {
			fmt.Fprintf(a.errOut, "%s: %v\n", a.texts.GetText(KeyErrorOpeningDir), err)
		}
	}

	if code := exitCode(state); code != ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// watch renders events until the task ends. The first ctx cancellation
// cancels the task once; watch still waits for the terminal event and for
// the task to finish recording its outcome.
func watch(ctx context.Context, d download.Downloader, handle *download.TaskHandle, r *progressRenderer) model.TaskState {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	interrupted := ctx.Done()
	finished := handle.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			r.notice(r.texts.GetText(KeyStoppingDownload))
			d.Cancel()
		case <-finished:
			finished = nil
		case <-ticker.C:
		}

		for _, ev := range d.Drain() {
			r.render(ev)
			if ev.Terminal() {
				waitFinished(handle)
				return model.TerminalState(ev)
			}
		}
	}
}

// waitFinished blocks until the task's outcome has been recorded, so
// resources the Recorder uses stay open until then.
func waitFinished(handle *download.TaskHandle) {
	timer := time.NewTimer(download.RecordTimeout)
	defer timer.Stop()

	select {
	case <-handle.Done():
	case <-timer.C:
	}
}

// progressRenderer draws coordinator events on a terminal
type progressRenderer struct {
	out   io.Writer
	texts *Localization
	bar   *progressbar.ProgressBar
}

func newProgressRenderer(out io.Writer, texts *Localization, req model.Request) *progressRenderer {
	description := fmt.Sprintf("%s %s", texts.GetText(KeyDownloading), req.URL)
	return &progressRenderer{
		out:   out,
		texts: texts,
		bar: progressbar.NewOptions64(
			barMax,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

func (r *progressRenderer) render(ev model.Event) {
	switch e := ev.(type) {
	case model.Progress:
		r.bar.Describe(describeProgress(r.texts, e))
		_ = r.bar.Set64(int64(e.Percent * barScale))
	case model.Completed:
		_ = r.bar.Finish()
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, outcomeMessage(r.texts, ev))
	default:
		_ = r.bar.Exit()
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, outcomeMessage(r.texts, ev))
	}
}

func (r *progressRenderer) notice(msg string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, msg)
}

// describeProgress formats a progress line such as
// "Downloading 12 MB / 45 MB, 1.2 MB/s, ETA 00:27"
func describeProgress(texts *Localization, p model.Progress) string {
	var b strings.Builder
	b.WriteString(texts.GetText(KeyDownloading))

	switch {
	case p.DownloadedBytes > 0 && p.TotalBytes > 0:
		fmt.Fprintf(&b, " %s / %s", humanize.Bytes(uint64(p.DownloadedBytes)), humanize.Bytes(uint64(p.TotalBytes)))
	case p.DownloadedBytes > 0:
		fmt.Fprintf(&b, " %s", humanize.Bytes(uint64(p.DownloadedBytes)))
	}

	if p.Rate != nil {
		fmt.Fprintf(&b, ", %s/s, ETA %s", humanize.Bytes(uint64(p.Rate.BytesPerSecond)), p.Rate.GetRemainingString())
	}
	return b.String()
}

// outcomeMessage returns the line shown when a task ends
func outcomeMessage(texts *Localization, ev model.Event) string {
	switch e := ev.(type) {
	case model.Completed:
		return texts.GetText(KeyDownloadCompleted)
	case model.Cancelled:
		return texts.GetText(KeyDownloadCancelled)
	case model.Failed:
		switch e.Kind {
		case model.ErrorKindNetworkOrExtraction:
			return texts.GetText(KeyDownloadError) + e.Message
		case model.ErrorKindUnsupported:
			return texts.GetText(KeyUnsupportedError) + e.Message
		default:
			return e.Message
		}
	default:
		return ""
	}
}

// exitCode maps a finished task's state to the process exit code
func exitCode(state model.TaskState) int {
	switch state {
	case model.TaskStateCompleted:
		return ExitOK
	case model.TaskStateCancelled:
		return ExitCancelled
	default:
		return ExitFailure
	}
}
