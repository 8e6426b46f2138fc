package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidHeader = errors.New("invalid header value")

	// Metadata errors
	ErrNoUsableIndex   = errors.New("no usable package index found")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrDecompress      = errors.New("failed to decompress index")

	// Catalog errors
	ErrInvalidEncoding    = errors.New("index is not valid UTF-8")
	ErrMalformedParagraph = errors.New("malformed control paragraph")
	ErrMissingField       = errors.New("missing required field")
	ErrUnsafePath         = errors.New("unsafe package path")

	// Download errors
	ErrUnexpectedStatus  = errors.New("unexpected HTTP status")
	ErrThresholdExceeded = errors.New("failed task count exceeded threshold")
	ErrInsufficientSpace = errors.New("insufficient free disk space")

	// Archive errors
	ErrArchive = errors.New("failed to build archive")
)

// SkippableError represents an error that can be logged and skipped.
// Processing can continue with the next item when this error occurs.
type SkippableError struct {
	Err     error
	Context string
}

// Error returns the error message
func (e *SkippableError) Error() string {
	if e.Context != "" {
		if e.Err != nil {
			return e.Context + ": " + e.Err.Error()
		}
		return e.Context
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "skippable error"
}

// Unwrap returns the underlying error
func (e *SkippableError) Unwrap() error {
	return e.Err
}

// NewSkippableError creates a new skippable error
func NewSkippableError(err error, context string) *SkippableError {
	return &SkippableError{Err: err, Context: context}
}

// IsSkippable returns true if the error can be skipped
func IsSkippable(err error) bool {
	var se *SkippableError
	return errors.As(err, &se)
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s %d", e.URL, ErrUnexpectedStatus, e.StatusCode)
}

// Unwrap lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
