// Package network moves wire datagrams over UDP.
//
// Sender is the outbound side used by a streaming session; Listener is the
// receiving side that decodes datagrams back into events. Both reach the
// operating system through the UDPSocket and UDPSocketFactory interfaces so
// tests can run without real sockets. Capture and replay of datagrams to
// and from pcap files is handled with gopacket's pure-Go pcapgo reader and
// writer.
package network
