package platform

// Package platform contains OS integration and external tooling glue:
// directory helpers, executable validation, ffmpeg/ffprobe/yt-dlp discovery
// and opening the download folder in the system file manager.
