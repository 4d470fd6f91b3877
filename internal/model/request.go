package model

import (
	"slices"
	"strings"
)

// Kind selects what a request downloads
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Quality and format catalogue offered to users
var (
	AudioQualities = []string{"128", "192", "320"}
	VideoQualities = []string{"720", "1080", "1440", "2160"}
	AudioFormats   = []string{"mp3", "aac", "wav", "flac"}
	VideoFormats   = []string{"mp4", "avi", "mkv"}
)

// ToolPaths holds the locations of the external executables a download needs
type ToolPaths struct {
	FFmpeg  string `json:"ffmpeg" mapstructure:"ffmpeg" yaml:"ffmpeg"`
	FFprobe string `json:"ffprobe" mapstructure:"ffprobe" yaml:"ffprobe"`
	YTDLP   string `json:"ytdlp,omitempty" mapstructure:"ytdlp" yaml:"ytdlp"`
}

// Request describes one download. It is built once per Start and never mutated afterwards.
type Request struct {
	URL              string    `json:"url" validate:"required,media_url"`
	Kind             Kind      `json:"kind" validate:"required,oneof=audio video"`
	Quality          string    `json:"quality" validate:"required"`
	Format           string    `json:"format" validate:"required"`
	OutputDir        string    `json:"output_dir" validate:"required"`
	FilenameTemplate string    `json:"filename_template,omitempty"`
	Tools            ToolPaths `json:"tools"`
}

// QualityOptions returns the qualities available for a kind
func QualityOptions(kind Kind) []string {
	if kind == KindAudio {
		return AudioQualities
	}
	return VideoQualities
}

// FormatOptions returns the output formats available for a kind
func FormatOptions(kind Kind) []string {
	if kind == KindAudio {
		return AudioFormats
	}
	return VideoFormats
}

// NormalizeQuality turns display labels such as "192 kbps" or "2160p (4K)" into
// the bare numeric form used by requests
func NormalizeQuality(label string) string {
	q := strings.ToLower(strings.TrimSpace(label))
	if i := strings.Index(q, "("); i >= 0 {
		q = strings.TrimSpace(q[:i])
	}
	q = strings.TrimSuffix(q, "kbps")
	q = strings.TrimSpace(q)
	q = strings.TrimSuffix(q, "k")
	q = strings.TrimSuffix(q, "p")
	return q
}

// HasQuality reports whether quality is in the catalogue for kind
func HasQuality(kind Kind, quality string) bool {
	return slices.Contains(QualityOptions(kind), quality)
}

// HasFormat reports whether format is in the catalogue for kind
func HasFormat(kind Kind, format string) bool {
	return slices.Contains(FormatOptions(kind), format)
}
