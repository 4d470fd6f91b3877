package download

import (
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ytget/yt-fetcher/internal/model"
)

func TestSampleFromUpdate(t *testing.T) {
	update := ytdlp.ProgressUpdate{
		Status:          "downloading",
		TotalBytes:      1000,
		DownloadedBytes: 250,
		Started:         time.Now().Add(-time.Second),
	}

	sample := sampleFromUpdate(&update)
	if sample.Status != StatusDownloading {
		t.Errorf("Expected status downloading, got %s", sample.Status)
	}
	if sample.PercentText != "25.0%" {
		t.Errorf("Expected percent text 25.0%%, got %s", sample.PercentText)
	}
	if sample.BytesPerSecond <= 0 || sample.BytesPerSecond > 250 {
		t.Errorf("Expected speed in (0, 250], got %f", sample.BytesPerSecond)
	}
}

func TestSampleFromUpdate_UnknownTotal(t *testing.T) {
	update := ytdlp.ProgressUpdate{Status: "downloading", DownloadedBytes: 100}

	sample := sampleFromUpdate(&update)
	if sample.PercentText != "" {
		t.Errorf("Expected no percent text, got %q", sample.PercentText)
	}
	if sample.BytesPerSecond != 0 {
		t.Errorf("Expected unknown speed, got %f", sample.BytesPerSecond)
	}

	n := &normalizer{}
	if _, err := n.normalize(sample); err == nil {
		t.Error("Expected a sample without total or percent to be dropped")
	}
}

func TestNewLibraryFetcher_Defaults(t *testing.T) {
	f := NewLibraryFetcher(0, "", nil)
	if f.interval != DefaultProgressInterval {
		t.Errorf("Expected default interval, got %s", f.interval)
	}
	if f.logger == nil {
		t.Error("Expected a logger")
	}

	req := testRequest()
	req.Tools.YTDLP = "/opt/yt-dlp"
	if got := f.resolveExecutable(req); got != "/opt/yt-dlp" {
		t.Errorf("Expected request executable, got %q", got)
	}
	if got := NewLibraryFetcher(time.Second, "/bin/custom", nil).resolveExecutable(req); got != "/bin/custom" {
		t.Errorf("Expected configured executable to win, got %q", got)
	}

	if cmd := f.command(model.Request{Kind: model.KindAudio, Quality: "192", Format: "mp3", OutputDir: "/tmp"}); cmd == nil {
		t.Error("Expected a configured command")
	}
}
