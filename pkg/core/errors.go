package core

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Hosts wrap these; the engine classifies with errors.Is.
var (
	ErrInvalidPattern  = errors.New("invalid pattern")
	ErrStaleSelection  = errors.New("stale selection")
	ErrHostUnavailable = errors.New("host unavailable")
	ErrLoadError       = errors.New("load error")
	ErrNotFound        = errors.New("not found")
	ErrCancelled       = errors.New("cancelled")
)

// =============================================================================
// ErrorKind
// =============================================================================

// ErrorKind is the display classification of a resolution failure.
type ErrorKind int

// Error kinds surfaced per slot.
const (
	ErrorNone ErrorKind = iota
	ErrorNotFound
	ErrorLoad
	ErrorHostUnavailable
	ErrorCancelled
)

// String returns the label of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorNotFound:
		return "NotFound"
	case ErrorLoad:
		return "LoadError"
	case ErrorHostUnavailable:
		return "HostUnavailable"
	case ErrorCancelled:
		return "Cancelled"
	default:
		return "unknown"
	}
}

// Classify maps an error to its ErrorKind. Anything unrecognised, including
// deadline expiry, is HostUnavailable.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrorCancelled
	case errors.Is(err, ErrNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrLoadError):
		return ErrorLoad
	default:
		return ErrorHostUnavailable
	}
}

// ResolveError is a classified failure of one resolution task.
type ResolveError struct {
	Kind   ErrorKind
	Target string
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }
