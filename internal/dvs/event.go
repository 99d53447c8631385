package dvs

import "fmt"

// MaxCoordinate is the largest pixel coordinate the wire format can carry.
// Coordinates share a 16-bit word with a flag bit, leaving 15 bits.
const MaxCoordinate = 0x7FFF

// MicrosPerSecond converts event timestamps (microseconds) to seconds.
const MicrosPerSecond = 1_000_000

// PolarityEvent is one brightness-change event reported by the sensor.
type PolarityEvent struct {
	Timestamp int64  // microseconds, non-decreasing within a stream
	X         uint16 // pixel column, must fit in 15 bits to be transmitted
	Y         uint16 // pixel row, must fit in 15 bits to be transmitted
	Polarity  bool   // true for an "on" (brighter) change
	Valid     bool   // invalid events carry no usable payload
}

// Sign returns +1 for an "on" event and -1 for an "off" event.
func (e PolarityEvent) Sign() int8 {
	if e.Polarity {
		return 1
	}
	return -1
}

// String formats the event the same way the recording log does.
func (e PolarityEvent) String() string {
	p := 0
	if e.Polarity {
		p = 1
	}
	return fmt.Sprintf("DVS %d %d %d %d", e.Timestamp, e.X, e.Y, p)
}

// FilterValid returns the valid events of stream in their original order.
// The input is not modified. When every event is valid the input slice is
// returned as is.
func FilterValid(stream []PolarityEvent) []PolarityEvent {
	invalid := 0
	for i := range stream {
		if !stream[i].Valid {
			invalid++
		}
	}
	if invalid == 0 {
		return stream
	}
	out := make([]PolarityEvent, 0, len(stream)-invalid)
	for _, ev := range stream {
		if ev.Valid {
			out = append(out, ev)
		}
	}
	return out
}
