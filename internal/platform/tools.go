package platform

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Tool names
const (
	FFmpegBinary  = "ffmpeg"
	FFprobeBinary = "ffprobe"
	YTDLPBinary   = "yt-dlp"
)

// ErrInvalidExecutable is returned for tool paths that are not runnable files
var ErrInvalidExecutable = errors.New("not a valid executable")

// Default install locations checked before PATH
var (
	UnixToolDirs        = []string{"/usr/bin", "/usr/local/bin", "/opt/homebrew/bin"}
	WindowsToolDirGlobs = []string{"C:/ffmpeg*/bin", "C:/Program Files/ffmpeg*/bin"}
)

// ToolStatus describes one discovered tool
type ToolStatus struct {
	Name  string
	Path  string
	Valid bool
}

// IsValidExecutable reports whether path is a regular file the current user
// can execute. On Windows the file must have an .exe suffix.
func IsValidExecutable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == OSWindows {
		return strings.EqualFold(filepath.Ext(path), ".exe")
	}
	return info.Mode().Perm()&0111 != 0
}

// ValidateTools checks that ffmpeg and ffprobe are present and executable
func ValidateTools(ffmpeg, ffprobe string) error {
	if !IsValidExecutable(ffmpeg) {
		return fmt.Errorf("ffmpeg %q: %w", ffmpeg, ErrInvalidExecutable)
	}
	if !IsValidExecutable(ffprobe) {
		return fmt.Errorf("ffprobe %q: %w", ffprobe, ErrInvalidExecutable)
	}
	return nil
}

// DetectTool finds a tool by checking the platform install locations, then PATH.
// It returns an empty string when nothing is found.
func DetectTool(name string) string {
	binary := name
	if runtime.GOOS == OSWindows {
		binary += ".exe"
	}

	for _, dir := range candidateDirs() {
		path := filepath.Join(dir, binary)
		if IsValidExecutable(path) {
			return path
		}
	}

	if path, err := exec.LookPath(name); err == nil && IsValidExecutable(path) {
		return path
	}
	return ""
}

// DetectFFmpeg returns ffmpeg and ffprobe paths, preferring an ffprobe that
// sits next to the detected ffmpeg.
func DetectFFmpeg() (ffmpeg, ffprobe string) {
	ffmpeg = DetectTool(FFmpegBinary)
	if ffmpeg != "" {
		sibling := filepath.Join(filepath.Dir(ffmpeg), FFprobeBinary+filepath.Ext(ffmpeg))
		if IsValidExecutable(sibling) {
			return ffmpeg, sibling
		}
	}
	return ffmpeg, DetectTool(FFprobeBinary)
}

// ResolveTool returns configured when it is set, otherwise the detected path of name
func ResolveTool(configured, name string) string {
	if configured != "" {
		return configured
	}
	return DetectTool(name)
}

// CheckTools reports the status of every tool a download can use
func CheckTools(ffmpeg, ffprobe, ytdlp string) []ToolStatus {
	return []ToolStatus{
		{Name: FFmpegBinary, Path: ffmpeg, Valid: IsValidExecutable(ffmpeg)},
		{Name: FFprobeBinary, Path: ffprobe, Valid: IsValidExecutable(ffprobe)},
		{Name: YTDLPBinary, Path: ytdlp, Valid: IsValidExecutable(ytdlp)},
	}
}

func candidateDirs() []string {
	if runtime.GOOS != OSWindows {
		return UnixToolDirs
	}
	var dirs []string
	for _, pattern := range WindowsToolDirGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		dirs = append(dirs, matches...)
	}
	return dirs
}
