// Package recording reads and writes the plain-text event log, one event
// per line in the form "DVS <timestamp> <x> <y> <polarity>".
package recording

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/wire"
)

const linePrefix = "DVS"

// ErrMalformedLine marks a line that is not a recorded event.
var ErrMalformedLine = errors.New("malformed recording line")

// ParseError locates a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Writer appends events to a log. It is safe for concurrent use and
// satisfies wire.EventRecorder and network.EventHandler.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	n      int
}

// NewWriter buffers writes to w.
func NewWriter(w io.Writer) *Writer {
	rw := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		rw.closer = c
	}
	return rw
}

// Create opens the file at path for appending, creating it if needed.
// Earlier sessions' lines are kept.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return NewWriter(f), nil
}

// Record writes one event line.
func (w *Writer) Record(ev dvs.PolarityEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record(ev)
}

func (w *Writer) record(ev dvs.PolarityEvent) error {
	if _, err := w.w.WriteString(ev.String()); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

// HandleEvents records events decoded by a listener.
func (w *Writer) HandleEvents(events []wire.DecodedEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range events {
		if err := w.record(d.Event()); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of events written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Flush writes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}

// Close flushes and closes the underlying writer when it is closable.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.w.Flush()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}
	return err
}

// ParseLine parses one recorded event. The event is always valid.
func ParseLine(line string) (dvs.PolarityEvent, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 || fields[0] != linePrefix {
		return dvs.PolarityEvent{}, fmt.Errorf("%w: want %q followed by four fields", ErrMalformedLine, linePrefix)
	}
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return dvs.PolarityEvent{}, fmt.Errorf("%w: timestamp: %w", ErrMalformedLine, err)
	}
	x, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return dvs.PolarityEvent{}, fmt.Errorf("%w: x: %w", ErrMalformedLine, err)
	}
	y, err := strconv.ParseUint(fields[3], 10, 16)
	if err != nil {
		return dvs.PolarityEvent{}, fmt.Errorf("%w: y: %w", ErrMalformedLine, err)
	}
	var polarity bool
	switch fields[4] {
	case "1":
		polarity = true
	case "0":
	default:
		return dvs.PolarityEvent{}, fmt.Errorf("%w: polarity must be 0 or 1, got %q", ErrMalformedLine, fields[4])
	}
	return dvs.PolarityEvent{Timestamp: ts, X: uint16(x), Y: uint16(y), Polarity: polarity, Valid: true}, nil
}

// Reader streams events from a log. Blank lines are ignored.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader reads lines from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{sc: bufio.NewScanner(r)}
}

// Next returns the next event, or io.EOF after the last line.
func (r *Reader) Next() (dvs.PolarityEvent, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" {
			continue
		}
		ev, err := ParseLine(text)
		if err != nil {
			return dvs.PolarityEvent{}, &ParseError{Line: r.line, Text: text, Err: err}
		}
		return ev, nil
	}
	if err := r.sc.Err(); err != nil {
		return dvs.PolarityEvent{}, err
	}
	return dvs.PolarityEvent{}, io.EOF
}

// ReadAll reads every event from r.
func ReadAll(r io.Reader) ([]dvs.PolarityEvent, error) {
	rd := NewReader(r)
	var events []dvs.PolarityEvent
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// ReadFile reads every event from the log at path.
func ReadFile(path string) ([]dvs.PolarityEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	return ReadAll(f)
}
