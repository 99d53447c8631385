package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap these.
var (
	ErrCoordinateRange = errors.New("coordinate exceeds 15-bit range")
	ErrMalformedPacket = errors.New("malformed packet")
	ErrInvalidLayout   = errors.New("invalid wire layout")
)

// CoordinateRangeError reports an event that cannot be encoded without
// clobbering a flag bit.
type CoordinateRangeError struct {
	// Index is the event's position in the container given to
	// EncodeContainer. Append sees no container and reports -1.
	Index int
	X, Y  uint16 // offending coordinates
}

func (e *CoordinateRangeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("event at (%d, %d): %v (max %d)", e.X, e.Y, ErrCoordinateRange, maxCoordinate)
	}
	return fmt.Sprintf("event %d at (%d, %d): %v (max %d)", e.Index, e.X, e.Y, ErrCoordinateRange, maxCoordinate)
}

func (e *CoordinateRangeError) Unwrap() error { return ErrCoordinateRange }

// MalformedPacketError reports a payload whose length is not a whole number
// of events.
type MalformedPacketError struct {
	Length int // payload bytes
	Width  int // expected bytes per event
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("%v: %d bytes is not a multiple of the %d-byte event width", ErrMalformedPacket, e.Length, e.Width)
}

func (e *MalformedPacketError) Unwrap() error { return ErrMalformedPacket }
