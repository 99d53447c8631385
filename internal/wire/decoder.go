package wire

import (
	"encoding/binary"

	"github.com/banshee-data/dvstream/internal/dvs"
)

// DecodedEvent is one event recovered from a datagram.
type DecodedEvent struct {
	X             uint16
	Y             uint16
	Polarity      bool
	TimestampFlag bool
	Timestamp     uint32 // low 32 bits of the sender's timestamp; zero without timestamps
}

// Event converts d back into a valid polarity event.
func (d DecodedEvent) Event() dvs.PolarityEvent {
	return dvs.PolarityEvent{
		Timestamp: int64(d.Timestamp),
		X:         d.X,
		Y:         d.Y,
		Polarity:  d.Polarity,
		Valid:     true,
	}
}

// DecodeDatagram unpacks every event in payload. The timestamp mode must be
// known out of band; a payload that is not a whole number of events is a
// *MalformedPacketError.
func DecodeDatagram(payload []byte, includeTimestamp bool) ([]DecodedEvent, error) {
	return DecodeDatagramInto(nil, payload, includeTimestamp)
}

// DecodeDatagramInto is DecodeDatagram appending to dst, letting a receive
// loop reuse one slice.
func DecodeDatagramInto(dst []DecodedEvent, payload []byte, includeTimestamp bool) ([]DecodedEvent, error) {
	width := Layout{IncludeTimestamp: includeTimestamp}.EventWidthBytes()
	if len(payload)%width != 0 {
		return dst, &MalformedPacketError{Length: len(payload), Width: width}
	}
	for off := 0; off < len(payload); off += width {
		w0 := binary.BigEndian.Uint16(payload[off:])
		w1 := binary.BigEndian.Uint16(payload[off+2:])
		d := DecodedEvent{
			X:             w0 & coordMask,
			Y:             w1 & coordMask,
			TimestampFlag: w0&flagBit != 0,
			Polarity:      w1&flagBit != 0,
		}
		if includeTimestamp {
			lo := binary.BigEndian.Uint16(payload[off+4:])
			hi := binary.BigEndian.Uint16(payload[off+6:])
			d.Timestamp = uint32(hi)<<16 | uint32(lo)
		}
		dst = append(dst, d)
	}
	return dst, nil
}

// DetectTimestampMode infers the timestamp mode of payload from the flag bit
// of its first event and checks that the length agrees with it.
func DetectTimestampMode(payload []byte) (bool, error) {
	if len(payload) < 2*wordBytes {
		return false, &MalformedPacketError{Length: len(payload), Width: 2 * wordBytes}
	}
	includeTimestamp := binary.BigEndian.Uint16(payload)&flagBit != 0
	width := Layout{IncludeTimestamp: includeTimestamp}.EventWidthBytes()
	if len(payload)%width != 0 {
		return includeTimestamp, &MalformedPacketError{Length: len(payload), Width: width}
	}
	return includeTimestamp, nil
}
