package dvs

import (
	"errors"
	"fmt"
)

// Sentinel errors for stream queries. Use errors.Is against these; the
// typed errors below carry the details.
var (
	ErrEmptyStream  = errors.New("empty event stream")
	ErrIndexOverrun = errors.New("event stream shorter than requested")
)

// EmptyStreamError reports a query that needs at least one event.
type EmptyStreamError struct {
	Op string
}

func (e *EmptyStreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrEmptyStream)
}

func (e *EmptyStreamError) Unwrap() error { return ErrEmptyStream }

// IndexOverrunError reports a boundary query past the end of the stream.
type IndexOverrunError struct {
	Second int64 // requested boundary, seconds after stream start
	Len    int   // number of events in the stream
}

func (e *IndexOverrunError) Error() string {
	return fmt.Sprintf("no event at or after second %d (stream has %d events): %v", e.Second, e.Len, ErrIndexOverrun)
}

func (e *IndexOverrunError) Unwrap() error { return ErrIndexOverrun }
