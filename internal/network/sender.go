package network

import (
	"fmt"
	"io"
	"net"

	"github.com/banshee-data/dvstream/internal/monitoring"
)

// SenderConfig contains configuration options for a Sender.
type SenderConfig struct {
	// Destination is the receiver's host:port.
	Destination string
	// LocalAddress optionally pins the source address; empty lets the
	// operating system choose.
	LocalAddress string
	// SendBuffer sets the socket send buffer when positive.
	SendBuffer int
	// Factory creates the socket; nil uses the real network.
	Factory UDPSocketFactory
}

// Sender writes datagrams to one destination. It implements
// wire.DatagramSink. Send failures are returned as *TransportError and are
// never retried.
type Sender struct {
	conn        UDPSocket
	destination string
}

// NewSender resolves the destination and opens a connected UDP socket.
func NewSender(config SenderConfig) (*Sender, error) {
	factory := config.Factory
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}

	raddr, err := net.ResolveUDPAddr("udp", config.Destination)
	if err != nil {
		return nil, &TransportError{Op: "resolve", Addr: config.Destination, Err: err}
	}
	var laddr *net.UDPAddr
	if config.LocalAddress != "" {
		if laddr, err = net.ResolveUDPAddr("udp", config.LocalAddress); err != nil {
			return nil, &TransportError{Op: "resolve", Addr: config.LocalAddress, Err: err}
		}
	}

	conn, err := factory.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Addr: config.Destination, Err: err}
	}
	if config.SendBuffer > 0 {
		if err := conn.SetWriteBuffer(config.SendBuffer); err != nil {
			// Not fatal: the kernel default still works, only with less slack.
			monitoring.Logf("Warning: failed to set UDP send buffer size to %d: %v", config.SendBuffer, err)
		}
	}
	return &Sender{conn: conn, destination: raddr.String()}, nil
}

// Destination returns the resolved destination address.
func (s *Sender) Destination() string { return s.destination }

// SendDatagram writes payload as a single datagram.
func (s *Sender) SendDatagram(payload []byte) error {
	n, err := s.conn.Write(payload)
	if err != nil {
		return &TransportError{Op: "send", Addr: s.destination, Err: err}
	}
	if n != len(payload) {
		return &TransportError{Op: "send", Addr: s.destination, Err: fmt.Errorf("%w: wrote %d of %d bytes", io.ErrShortWrite, n, len(payload))}
	}
	return nil
}

// Close closes the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
