package errors

import (
	"errors"
	"fmt"
)

// Kind classifies stream failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindDriverOpen
	KindDriverRead
	KindDriverWrite
	KindDriverClose
	KindInvalidUnpipe
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindDriverOpen:
		return "driver open error"
	case KindDriverRead:
		return "driver read error"
	case KindDriverWrite:
		return "driver write error"
	case KindDriverClose:
		return "driver close error"
	case KindInvalidUnpipe:
		return "invalid unpipe"
	case KindNotImplemented:
		return "not implemented"
	default:
		return "unknown stream error"
	}
}

// StreamError is the error type surfaced through stream error events and
// failed futures. Two StreamErrors match under errors.Is when their kinds are
// equal, so the Err* values below act as kind sentinels.
type StreamError struct {
	Kind Kind
	Op   string
	Err  error
}

// Kind sentinels for errors.Is.
var (
	ErrDriverOpen     = &StreamError{Kind: KindDriverOpen}
	ErrDriverRead     = &StreamError{Kind: KindDriverRead}
	ErrDriverWrite    = &StreamError{Kind: KindDriverWrite}
	ErrDriverClose    = &StreamError{Kind: KindDriverClose}
	ErrInvalidUnpipe  = &StreamError{Kind: KindInvalidUnpipe}
	ErrNotImplemented = &StreamError{Kind: KindNotImplemented}
)

func (e *StreamError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("stream: %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("stream: %s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("stream: %s: %v", e.Kind, e.Err)
	default:
		return "stream: " + e.Kind.String()
	}
}

func (e *StreamError) Unwrap() error { return e.Err }

// Is matches any StreamError of the same kind.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newStreamError(kind Kind, op string, err error) *StreamError {
	// keep the innermost classification when a driver already returned one
	var serr *StreamError
	if errors.As(err, &serr) && serr.Kind == kind {
		return serr
	}
	return &StreamError{Kind: kind, Op: op, Err: err}
}

// DriverOpen wraps a failure to open the resource behind a driver.
func DriverOpen(op string, err error) *StreamError { return newStreamError(KindDriverOpen, op, err) }

// DriverRead wraps a source driver failure.
func DriverRead(op string, err error) *StreamError { return newStreamError(KindDriverRead, op, err) }

// DriverWrite wraps a sink driver batch write failure.
func DriverWrite(op string, err error) *StreamError { return newStreamError(KindDriverWrite, op, err) }

// DriverClose wraps a sink driver close failure.
func DriverClose(op string, err error) *StreamError { return newStreamError(KindDriverClose, op, err) }

// InvalidUnpipe reports an unpipe of a writable that was never connected.
func InvalidUnpipe(op string) *StreamError {
	return &StreamError{Kind: KindInvalidUnpipe, Op: op}
}

// NotImplemented reports a driver that left a required method unimplemented.
// It is a programming error, never a runtime condition.
func NotImplemented(what string) *StreamError {
	return &StreamError{Kind: KindNotImplemented, Op: what}
}

// KindOf returns the kind of the first StreamError in err's chain.
func KindOf(err error) Kind {
	var serr *StreamError
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindUnknown
}

// IsFatal returns true for contract violations that must not be recovered.
// It accepts arbitrary values so it can inspect recovered panics.
func IsFatal(v interface{}) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	return KindOf(err) == KindNotImplemented
}

// IsDriverError returns true if err originated in a source or sink driver.
func IsDriverError(err error) bool {
	switch KindOf(err) {
	case KindDriverOpen, KindDriverRead, KindDriverWrite, KindDriverClose:
		return true
	default:
		return false
	}
}
