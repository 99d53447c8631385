// Package wire implements the datagram format used to stream polarity
// events over UDP.
//
// Every event is packed into big-endian 16-bit words:
//
//	word 0: bit 15 = timestamp flag, bits 14-0 = x
//	word 1: bit 15 = polarity,       bits 14-0 = y
//	word 2: low 16 bits of the 32-bit timestamp   (timestamp mode only)
//	word 3: high 16 bits of the 32-bit timestamp  (timestamp mode only)
//
// Whether timestamps are carried is fixed for a session; datagrams have no
// header, so a receiver must either be configured with the mode or detect
// it from the flag bit of the first event. Delivery is best effort: the
// format has no sequence numbers and lost datagrams are not recovered.
package wire
