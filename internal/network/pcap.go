package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const captureSnapLen = 65536

var (
	captureMAC  = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	anyIPv4Addr = &net.UDPAddr{IP: net.IPv4zero}
)

// CaptureWriter records datagrams as Ethernet/IP/UDP frames in a pcap
// stream. Frames are synthesised, so checksums and lengths are computed
// here rather than copied off the wire.
type CaptureWriter struct {
	mu  sync.Mutex
	w   *pcapgo.Writer
	dst *net.UDPAddr
	n   int
}

// NewCaptureWriter writes the pcap file header to w. dst is used as the
// destination of every captured datagram.
func NewCaptureWriter(w io.Writer, dst *net.UDPAddr) (*CaptureWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(captureSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	if dst == nil {
		dst = anyIPv4Addr
	}
	return &CaptureWriter{w: pw, dst: dst}, nil
}

// WriteDatagram appends one datagram; a nil src is recorded as 0.0.0.0:0.
func (c *CaptureWriter) WriteDatagram(payload []byte, ts time.Time, src *net.UDPAddr) error {
	if src == nil {
		src = anyIPv4Addr
	}
	frame, err := encapsulate(payload, src, c.dst)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := c.w.WritePacket(ci, frame); err != nil {
		return fmt.Errorf("write pcap packet: %w", err)
	}
	c.n++
	return nil
}

// Count returns the number of datagrams written so far.
func (c *CaptureWriter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func encapsulate(payload []byte, src, dst *net.UDPAddr) ([]byte, error) {
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(src.Port),
		DstPort: layers.UDPPort(dst.Port),
	}
	eth := &layers.Ethernet{SrcMAC: captureMAC, DstMAC: captureMAC}

	var network gopacket.SerializableLayer
	src4, dst4 := src.IP.To4(), dst.IP.To4()
	if src4 != nil && dst4 != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: src4, DstIP: dst4}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolUDP, SrcIP: src.IP.To16(), DstIP: dst.IP.To16()}
		if ip.SrcIP == nil {
			ip.SrcIP = net.IPv6zero
		}
		if ip.DstIP == nil {
			ip.DstIP = net.IPv6zero
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, network, udp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize datagram: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadPCAP calls fn with the UDP payload of every packet in a pcap stream
// addressed to port. Port 0 accepts any destination. Non-UDP packets and
// empty payloads are skipped. Reading stops at end of stream, on ctx
// cancellation, or when fn returns an error.
func ReadPCAP(ctx context.Context, r io.Reader, port int, fn func(payload []byte, ts time.Time, src *net.UDPAddr) error) error {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return fmt.Errorf("open pcap stream: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read pcap packet: %w", err)
		}

		packet := gopacket.NewPacket(data, pr.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		src := &net.UDPAddr{Port: int(udp.SrcPort)}
		switch ip := packet.NetworkLayer().(type) {
		case *layers.IPv4:
			src.IP = ip.SrcIP
		case *layers.IPv6:
			src.IP = ip.SrcIP
		}
		if err := fn(udp.Payload, ci.Timestamp, src); err != nil {
			return err
		}
	}
}
