package download

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ytget/yt-fetcher/internal/model"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

var errNoPercent = errors.New("sample has no percent")

// normalizer turns raw samples of one task into Progress events whose
// percent never decreases.
type normalizer struct {
	last float64
}

func (n *normalizer) normalize(raw RawSample) (model.Progress, error) {
	percent, err := samplePercent(raw)
	if err != nil {
		return model.Progress{}, err
	}

	percent = math.Min(percent, 100)
	percent = math.Max(percent, n.last)
	n.last = percent

	p := model.Progress{
		Percent:         percent,
		DownloadedBytes: max(raw.DownloadedBytes, 0),
		TotalBytes:      max(raw.TotalBytes, 0),
	}
	if raw.BytesPerSecond > 0 && raw.TotalBytes > 0 && raw.DownloadedBytes > 0 {
		remaining := float64(raw.TotalBytes-raw.DownloadedBytes) / raw.BytesPerSecond
		if remaining < 0 {
			remaining = 0
		}
		p.Rate = &model.Rate{
			BytesPerSecond: raw.BytesPerSecond,
			Remaining:      time.Duration(remaining * float64(time.Second)),
		}
	}
	return p, nil
}

// samplePercent parses the percent text, falling back to the byte counts
// when no text was reported.
func samplePercent(raw RawSample) (float64, error) {
	text := cleanPercentText(raw.PercentText)
	if text == "" {
		if raw.TotalBytes > 0 && raw.DownloadedBytes >= 0 {
			return float64(raw.DownloadedBytes) / float64(raw.TotalBytes) * 100, nil
		}
		return 0, errNoPercent
	}

	percent, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse percent %q: %w", text, err)
	}
	if math.IsNaN(percent) || math.IsInf(percent, 0) {
		return 0, fmt.Errorf("percent %q is not finite", text)
	}
	return math.Max(percent, 0), nil
}

// cleanPercentText strips colour codes, control characters and the percent sign.
func cleanPercentText(text string) string {
	text = ansiEscape.ReplaceAllString(text, "")
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "%")
	return strings.TrimSpace(text)
}
