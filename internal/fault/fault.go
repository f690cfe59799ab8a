// Package fault defines the typed failure kinds that cross component
// boundaries. Components below the tool gateway return these; the
// gateway is the single place that turns them into wire envelopes.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a failure category.
type Kind string

const (
	KindSourceNotFound    Kind = "source_not_found"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindModelNotLoaded    Kind = "model_not_loaded"
	KindLoadError         Kind = "load_error"
	KindDeviceBusy        Kind = "device_busy"
	KindRecordingTimeout  Kind = "recording_timeout"
	KindSessionClosed     Kind = "session_closed"
	KindInvalidArguments  Kind = "invalid_arguments"
	KindUnknownTool       Kind = "unknown_tool"
	KindInternal          Kind = "internal_error"
)

// Error carries a kind alongside a human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a fault of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf classifies an error. Anything that does not carry an explicit
// kind is reported as KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
