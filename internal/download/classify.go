package download

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"

	"github.com/ytget/yt-fetcher/internal/model"
)

// Failure messages
const (
	ToolMissingMessage = "FFmpeg or FFprobe was not found"
	UnknownErrorPrefix = "An unexpected error occurred: "
)

// ClassifyFailure maps any Fetcher error to exactly one error kind.
func ClassifyFailure(err error) model.ErrorKind {
	switch {
	case err == nil:
		return model.ErrorKindUnknown
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return model.ErrorKindCancelled
	case errors.Is(err, ErrToolMissing), errors.Is(err, exec.ErrNotFound):
		return model.ErrorKindToolMissing
	case errors.Is(err, ErrUnsupported):
		return model.ErrorKindUnsupported
	case errors.Is(err, ErrExtraction), errors.Is(err, context.DeadlineExceeded):
		return model.ErrorKindNetworkOrExtraction
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return model.ErrorKindNetworkOrExtraction
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Unsupported URL"):
		return model.ErrorKindUnsupported
	case strings.Contains(msg, "HTTP"),
		strings.Contains(msg, "ERROR:"),
		strings.Contains(msg, "Unable to"),
		strings.Contains(msg, "timed out"):
		return model.ErrorKindNetworkOrExtraction
	}
	return model.ErrorKindUnknown
}

// failedEvent builds the Failed event reported for err.
func failedEvent(err error) model.Failed {
	kind := ClassifyFailure(err)
	switch kind {
	case model.ErrorKindToolMissing:
		return model.Failed{Kind: kind, Message: ToolMissingMessage}
	case model.ErrorKindUnknown:
		return model.Failed{Kind: kind, Message: UnknownErrorPrefix + describe(err)}
	default:
		return model.Failed{Kind: kind, Message: describe(err)}
	}
}

func describe(err error) string {
	if err == nil {
		return "no error reported"
	}
	return err.Error()
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
