package wire

import (
	"fmt"

	"github.com/banshee-data/dvstream/internal/dvs"
)

// DatagramSink receives finished datagrams. The payload slice is reused
// after SendDatagram returns, so implementations must not retain it.
type DatagramSink interface {
	SendDatagram(payload []byte) error
}

// DatagramSinkFunc adapts a function to DatagramSink.
type DatagramSinkFunc func(payload []byte) error

// SendDatagram calls f(payload).
func (f DatagramSinkFunc) SendDatagram(payload []byte) error { return f(payload) }

// EventRecorder receives every valid event handed to the encoder,
// independent of how it is packed.
type EventRecorder interface {
	Record(ev dvs.PolarityEvent) error
}

// EncodeStats summarises one call to EncodeContainer.
type EncodeStats struct {
	Events    int // valid events packed
	Skipped   int // invalid events dropped
	Datagrams int // datagrams handed to the sink
	Bytes     int // payload bytes handed to the sink
}

// Add accumulates o into s.
func (s *EncodeStats) Add(o EncodeStats) {
	s.Events += o.Events
	s.Skipped += o.Skipped
	s.Datagrams += o.Datagrams
	s.Bytes += o.Bytes
}

// Encoder packs events into datagrams and flushes them to a sink.
//
// Events accumulate in a single buffer sized to the datagram budget. A
// full buffer is sent immediately; a partially filled buffer is sent by
// Flush, sized to the events it holds. An Encoder is not safe for
// concurrent use.
type Encoder struct {
	layout    Layout
	sink      DatagramSink
	recorder  EventRecorder
	buf       []byte
	count     int
	maxEvents int
	width     int
	stats     EncodeStats
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithRecorder records every valid event as it is packed.
func WithRecorder(r EventRecorder) EncoderOption {
	return func(e *Encoder) { e.recorder = r }
}

// NewEncoder returns an encoder for layout writing to sink.
func NewEncoder(layout Layout, sink DatagramSink, opts ...EncoderOption) (*Encoder, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: nil datagram sink", ErrInvalidLayout)
	}
	e := &Encoder{
		layout:    layout,
		sink:      sink,
		maxEvents: layout.MaxEventsPerPacket(),
		width:     layout.EventWidthBytes(),
	}
	e.buf = make([]byte, e.maxEvents*e.width)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Layout returns the encoder's layout.
func (e *Encoder) Layout() Layout { return e.layout }

// Buffered returns the number of events waiting for the next flush.
func (e *Encoder) Buffered() int { return e.count }

// Append packs one event. Invalid events are skipped without using a slot.
// When the buffer reaches MaxEventsPerPacket it is sent as one datagram.
func (e *Encoder) Append(ev dvs.PolarityEvent) error {
	if !ev.Valid {
		e.stats.Skipped++
		return nil
	}
	if !CheckCoordinates(ev) {
		return &CoordinateRangeError{Index: -1, X: ev.X, Y: ev.Y}
	}
	if e.recorder != nil {
		if err := e.recorder.Record(ev); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
	}
	e.layout.PutEvent(e.buf[e.count*e.width:], ev)
	e.count++
	e.stats.Events++
	if e.count == e.maxEvents {
		return e.Flush()
	}
	return nil
}

// Flush sends any buffered events as one datagram sized to exactly the
// events it holds. It is a no-op when the buffer is empty. The buffer is
// emptied even when the send fails.
func (e *Encoder) Flush() error {
	if e.count == 0 {
		return nil
	}
	n := e.count * e.width
	e.count = 0
	if err := e.sink.SendDatagram(e.buf[:n]); err != nil {
		return err
	}
	e.stats.Datagrams++
	e.stats.Bytes += n
	return nil
}

// Reset drops buffered events without sending them.
func (e *Encoder) Reset() { e.count = 0 }

// EncodeContainer packs a whole container of events and always flushes the
// trailing partial datagram. Coordinates are checked for every valid event
// before anything is packed, so a container with an out-of-range event
// sends nothing. Events buffered by earlier Append calls are sent with the
// container.
func (e *Encoder) EncodeContainer(events []dvs.PolarityEvent) (EncodeStats, error) {
	for i, ev := range events {
		if ev.Valid && !CheckCoordinates(ev) {
			return EncodeStats{}, &CoordinateRangeError{Index: i, X: ev.X, Y: ev.Y}
		}
	}

	before := e.stats
	for _, ev := range events {
		if err := e.Append(ev); err != nil {
			return e.since(before), err
		}
	}
	if err := e.Flush(); err != nil {
		return e.since(before), err
	}
	return e.since(before), nil
}

// Stats returns totals since the encoder was created.
func (e *Encoder) Stats() EncodeStats { return e.stats }

func (e *Encoder) since(before EncodeStats) EncodeStats {
	return EncodeStats{
		Events:    e.stats.Events - before.Events,
		Skipped:   e.stats.Skipped - before.Skipped,
		Datagrams: e.stats.Datagrams - before.Datagrams,
		Bytes:     e.stats.Bytes - before.Bytes,
	}
}
