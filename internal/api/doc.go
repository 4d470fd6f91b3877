package api

// Package api exposes the download coordinator over HTTP with chi.
