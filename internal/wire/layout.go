package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/dvstream/internal/dvs"
)

const (
	// DefaultPort is the UDP port senders and listeners use unless told
	// otherwise.
	DefaultPort = 4950

	// DefaultMaxDatagramBytes is the default payload budget per datagram.
	DefaultMaxDatagramBytes = 512

	// MaxUDPPayload is the largest payload a single IPv4 UDP datagram holds.
	MaxUDPPayload = 65507

	flagBit       = 0x8000
	coordMask     = 0x7FFF
	maxCoordinate = dvs.MaxCoordinate

	wordBytes = 2
)

// Layout is the per-session shape of encoded events.
type Layout struct {
	IncludeTimestamp bool
	MaxDatagramBytes int
}

// DefaultLayout returns the layout used when nothing is configured: no
// timestamps and a 512-byte budget.
func DefaultLayout() Layout {
	return Layout{MaxDatagramBytes: DefaultMaxDatagramBytes}
}

// EventWidthWords returns the number of 16-bit words per event.
func (l Layout) EventWidthWords() int {
	if l.IncludeTimestamp {
		return 4
	}
	return 2
}

// EventWidthBytes returns the number of bytes per event.
func (l Layout) EventWidthBytes() int { return l.EventWidthWords() * wordBytes }

// MaxEventsPerPacket returns how many whole events fit in the datagram
// budget.
func (l Layout) MaxEventsPerPacket() int { return l.MaxDatagramBytes / l.EventWidthBytes() }

// Validate checks that at least one event fits in a datagram and that the
// budget does not exceed what UDP can carry.
func (l Layout) Validate() error {
	if l.MaxDatagramBytes < l.EventWidthBytes() {
		return fmt.Errorf("%w: datagram budget %d bytes is smaller than one %d-byte event",
			ErrInvalidLayout, l.MaxDatagramBytes, l.EventWidthBytes())
	}
	if l.MaxDatagramBytes > MaxUDPPayload {
		return fmt.Errorf("%w: datagram budget %d bytes exceeds UDP maximum %d",
			ErrInvalidLayout, l.MaxDatagramBytes, MaxUDPPayload)
	}
	return nil
}

// CheckCoordinates reports whether ev can be encoded.
func CheckCoordinates(ev dvs.PolarityEvent) bool {
	return ev.X <= maxCoordinate && ev.Y <= maxCoordinate
}

// PutEvent packs ev into dst, which must hold at least EventWidthBytes
// bytes. Coordinates must already be within range; use CheckCoordinates.
func (l Layout) PutEvent(dst []byte, ev dvs.PolarityEvent) {
	w0 := ev.X & coordMask
	if l.IncludeTimestamp {
		w0 |= flagBit
	}
	w1 := ev.Y & coordMask
	if ev.Polarity {
		w1 |= flagBit
	}
	binary.BigEndian.PutUint16(dst[0:], w0)
	binary.BigEndian.PutUint16(dst[2:], w1)
	if l.IncludeTimestamp {
		ts := uint32(ev.Timestamp) // wraps every ~71.6 minutes
		binary.BigEndian.PutUint16(dst[4:], uint16(ts))
		binary.BigEndian.PutUint16(dst[6:], uint16(ts>>16))
	}
}
