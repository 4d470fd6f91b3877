package cli

// Package cli implements the yt-fetcher command line: single downloads with a
// terminal progress bar, the HTTP server, history and tool checks.
