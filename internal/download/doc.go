package download

// Package download runs one media download at a time as a cancellable
// background task. The Coordinator launches the task, turns raw progress
// samples from a Fetcher (yt-dlp through github.com/lrstanley/go-ytdlp, or
// the yt-dlp binary driven directly) into normalized model.Event values and
// hands them to a single consumer through a bounded EventQueue.
