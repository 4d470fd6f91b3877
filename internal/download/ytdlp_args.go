package download

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ytget/yt-fetcher/internal/model"
)

// yt-dlp invocation constants
const (
	DefaultFilenameTemplate = "%(title)s.%(ext)s"
	ProgressLinePrefix      = "[progress]"
	ProgressFieldSeparator  = "|"
	UnknownFieldValue       = "NA"
	ErrorLinePrefix         = "ERROR:"

	// ProgressTemplate makes yt-dlp print status|percent|downloaded|total|speed per line
	ProgressTemplate = "download:" + ProgressLinePrefix +
		"%(progress.status)s|%(progress._percent_str)s|%(progress.downloaded_bytes)s|" +
		"%(progress.total_bytes,progress.total_bytes_estimate)s|%(progress.speed)s"
)

// FormatSelector returns the yt-dlp format expression for a request
func FormatSelector(req model.Request) string {
	if req.Kind == model.KindAudio {
		return fmt.Sprintf("bestaudio[abr<=%s]/bestaudio", req.Quality)
	}
	return fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best", req.Quality)
}

// OutputTemplate joins the destination directory and filename template
func OutputTemplate(req model.Request) string {
	tmpl := req.FilenameTemplate
	if tmpl == "" {
		tmpl = DefaultFilenameTemplate
	}
	return filepath.Join(req.OutputDir, tmpl)
}

// FFmpegLocation returns the directory holding ffmpeg and ffprobe when they
// share one, otherwise the ffmpeg binary itself.
func FFmpegLocation(tools model.ToolPaths) string {
	if tools.FFmpeg == "" {
		return ""
	}
	dir := filepath.Dir(tools.FFmpeg)
	if tools.FFprobe != "" && filepath.Dir(tools.FFprobe) == dir {
		return dir
	}
	return tools.FFmpeg
}

// AudioQuality converts a kbps value into yt-dlp's --audio-quality form
func AudioQuality(quality string) string {
	return quality + "K"
}

// BuildArgs builds the yt-dlp command line for req
func BuildArgs(req model.Request) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--restrict-filenames",
		"--progress-template", ProgressTemplate,
		"-f", FormatSelector(req),
		"-o", OutputTemplate(req),
	}
	if loc := FFmpegLocation(req.Tools); loc != "" {
		args = append(args, "--ffmpeg-location", loc)
	}
	if req.Kind == model.KindAudio {
		args = append(args,
			"--extract-audio",
			"--audio-format", req.Format,
			"--audio-quality", AudioQuality(req.Quality))
	} else {
		args = append(args, "--merge-output-format", req.Format)
	}
	return append(args, req.URL)
}

// parseProgressLine parses one line printed with ProgressTemplate
func parseProgressLine(line string) (RawSample, bool) {
	idx := strings.Index(line, ProgressLinePrefix)
	if idx < 0 {
		return RawSample{}, false
	}
	fields := strings.Split(line[idx+len(ProgressLinePrefix):], ProgressFieldSeparator)
	if len(fields) != 5 {
		return RawSample{}, false
	}

	return RawSample{
		Status:          strings.TrimSpace(fields[0]),
		PercentText:     fields[1],
		DownloadedBytes: int64(parseNumber(fields[2])),
		TotalBytes:      int64(parseNumber(fields[3])),
		BytesPerSecond:  parseNumber(fields[4]),
	}, true
}

// parseNumber reads a yt-dlp numeric field; "NA" and garbage read as 0
func parseNumber(field string) float64 {
	field = strings.TrimSpace(field)
	if field == "" || field == UnknownFieldValue {
		return 0
	}
	n, err := strconv.ParseFloat(field, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// failureFromOutput wraps a yt-dlp failure with the sentinel matching its last ERROR line
func failureFromOutput(errorLines []string, err error) error {
	if len(errorLines) == 0 {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: yt-dlp: %w", ErrToolMissing, err)
		}
		return err
	}

	msg := strings.TrimSpace(strings.TrimPrefix(errorLines[len(errorLines)-1], ErrorLinePrefix))
	if strings.Contains(msg, "Unsupported URL") {
		return &FetchError{Err: ErrUnsupported, Message: msg}
	}
	return &FetchError{Err: ErrExtraction, Message: msg}
}

// errorLines extracts the ERROR: lines from yt-dlp output
func errorLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ErrorLinePrefix) {
			lines = append(lines, line)
		}
	}
	return lines
}
