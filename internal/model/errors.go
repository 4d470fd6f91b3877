package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a task did not complete
type ErrorKind string

const (
	ErrorKindInvalidRequest      ErrorKind = "InvalidRequest"
	ErrorKindToolMissing         ErrorKind = "ToolMissing"
	ErrorKindNetworkOrExtraction ErrorKind = "NetworkOrExtraction"
	ErrorKindUnsupported         ErrorKind = "Unsupported"
	ErrorKindCancelled           ErrorKind = "Cancelled"
	ErrorKindUnknown             ErrorKind = "Unknown"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// ErrInvalidRequest is matched by every *InvalidRequestError
var ErrInvalidRequest = errors.New("invalid request")

// InvalidRequestError reports a malformed request rejected before any task is launched
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

func (e *InvalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

// Kind always returns ErrorKindInvalidRequest
func (e *InvalidRequestError) Kind() ErrorKind {
	return ErrorKindInvalidRequest
}
