package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/banshee-data/dvstream/internal/monitoring"
	"github.com/banshee-data/dvstream/internal/wire"
)

// EventHandler receives the events decoded from one datagram. The slice is
// reused after HandleEvents returns.
type EventHandler interface {
	HandleEvents(events []wire.DecodedEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(events []wire.DecodedEvent) error

// HandleEvents calls f(events).
func (f EventHandlerFunc) HandleEvents(events []wire.DecodedEvent) error { return f(events) }

// DatagramCapture stores raw datagrams as they arrive.
type DatagramCapture interface {
	WriteDatagram(payload []byte, ts time.Time, src *net.UDPAddr) error
}

// DatagramObserver is notified of every datagram outcome; the metrics
// package provides a Prometheus implementation.
type DatagramObserver interface {
	ObserveReceived(bytes, events int)
	ObserveMalformed()
}

// Listener receives wire datagrams over UDP and decodes them into events.
type Listener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	mode        *bool
	handler     EventHandler
	capture     DatagramCapture
	observer    DatagramObserver
	stats       PacketStatsInterface
	factory     UDPSocketFactory
	conn        UDPSocket
	decoded     []wire.DecodedEvent
}

// ListenerConfig contains configuration options for the UDP listener
type ListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	// IncludeTimestamp fixes the timestamp mode. When nil the mode is
	// detected per datagram from the first event's flag bit.
	IncludeTimestamp *bool
	Handler          EventHandler
	Capture          DatagramCapture
	Observer         DatagramObserver
	Stats            PacketStatsInterface
	Factory          UDPSocketFactory
}

// NewListener creates a new UDP listener with the provided configuration
func NewListener(config ListenerConfig) *Listener {
	// Provide a no-op stats implementation when none is supplied to avoid
	// nil pointer dereferences in the packet handling and logging paths.
	var stats PacketStatsInterface
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = &noopStats{}
	}

	// Default a sensible log interval if not provided
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	factory := config.Factory
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}

	return &Listener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		mode:        config.IncludeTimestamp,
		handler:     config.Handler,
		capture:     config.Capture,
		observer:    config.Observer,
		stats:       stats,
		factory:     factory,
	}
}

// Start binds the socket and processes datagrams until ctx is cancelled.
// Socket creation failures are returned as *TransportError; malformed
// datagrams are logged and counted but never stop the loop.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return &TransportError{Op: "resolve", Addr: l.address, Err: err}
	}

	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return &TransportError{Op: "listen", Addr: l.address, Err: err}
	}
	l.conn = conn
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	monitoring.Logf("DVS listener started on %s (%s)", conn.LocalAddr(), l.modeString())

	go l.startStatsLogging(ctx)

	// Senders cap datagrams well below this; the margin lets oversized
	// payloads arrive whole and fail the width check instead of truncating.
	buffer := make([]byte, wire.MaxUDPPayload+1)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("DVS listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Set read deadline to allow checking context cancellation
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, src, err := conn.ReadFromUDP(buffer)
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue // Continue on timeout to check context
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, net.ErrClosed) {
					return &TransportError{Op: "receive", Addr: l.address, Err: err}
				}
				monitoring.Logf("UDP read error: %v", err)
				continue
			}

			if err := l.handlePacket(buffer[:n], time.Now(), src); err != nil {
				return err
			}
		}
	}
}

// Replay decodes every UDP payload in a pcap stream as if it had just
// arrived. Only datagrams to port are used; port 0 accepts all.
func (l *Listener) Replay(ctx context.Context, r io.Reader, port int) error {
	count := 0
	err := ReadPCAP(ctx, r, port, func(payload []byte, ts time.Time, src *net.UDPAddr) error {
		count++
		return l.handlePacket(payload, ts, src)
	})
	l.stats.LogStats()
	monitoring.Logf("PCAP replay complete: %d datagrams", count)
	return err
}

// handlePacket decodes one datagram and hands its events on. Only handler
// and capture failures are returned; decode failures are counted.
func (l *Listener) handlePacket(payload []byte, ts time.Time, src *net.UDPAddr) error {
	l.stats.AddPacket(len(payload))

	if l.capture != nil {
		if err := l.capture.WriteDatagram(payload, ts, src); err != nil {
			return fmt.Errorf("capture datagram: %w", err)
		}
	}

	includeTimestamp, err := l.timestampMode(payload)
	if err == nil {
		l.decoded, err = wire.DecodeDatagramInto(l.decoded[:0], payload, includeTimestamp)
	}
	if err != nil {
		l.stats.AddMalformed()
		if l.observer != nil {
			l.observer.ObserveMalformed()
		}
		monitoring.Logf("Dropping datagram from %v: %v", src, err)
		return nil
	}

	l.stats.AddEvents(len(l.decoded))
	if l.observer != nil {
		l.observer.ObserveReceived(len(payload), len(l.decoded))
	}
	monitoring.Debugf("datagram from %v: %d bytes, %d events", src, len(payload), len(l.decoded))

	if l.handler != nil && len(l.decoded) > 0 {
		if err := l.handler.HandleEvents(l.decoded); err != nil {
			return fmt.Errorf("handle events: %w", err)
		}
	}
	return nil
}

func (l *Listener) timestampMode(payload []byte) (bool, error) {
	if l.mode != nil {
		return *l.mode, nil
	}
	return wire.DetectTimestampMode(payload)
}

func (l *Listener) modeString() string {
	switch {
	case l.mode == nil:
		return "timestamp mode detected per datagram"
	case *l.mode:
		return "with timestamps"
	default:
		return "without timestamps"
	}
}

// startStatsLogging periodically logs packet statistics until ctx ends
func (l *Listener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.stats.LogStats()
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// Close closes the UDP listener and releases resources
func (l *Listener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
