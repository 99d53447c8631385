package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/dvstream/internal/monitoring"
)

// PacketStatsInterface provides packet statistics management
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddEvents(count int)
	AddMalformed()
	LogStats()
}

// PacketStats tracks received datagram statistics with thread-safe operations
type PacketStats struct {
	mu             sync.Mutex
	packetCount    int64
	byteCount      int64
	eventCount     int64
	malformedCount int64
	lastReset      time.Time
}

// NewPacketStats creates a new PacketStats instance
func NewPacketStats() *PacketStats {
	return &PacketStats{
		lastReset: time.Now(),
	}
}

// AddPacket increments packet count and byte count
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddEvents increments the decoded event count
func (ps *PacketStats) AddEvents(count int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.eventCount += int64(count)
}

// AddMalformed increments the count of datagrams that failed to decode
func (ps *PacketStats) AddMalformed() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.malformedCount++
}

// StatsSnapshot is one reporting interval worth of counters.
type StatsSnapshot struct {
	Packets   int64
	Bytes     int64
	Events    int64
	Malformed int64
	Duration  time.Duration
}

// GetAndReset returns current stats and resets counters
func (ps *PacketStats) GetAndReset() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	s := StatsSnapshot{
		Packets:   ps.packetCount,
		Bytes:     ps.byteCount,
		Events:    ps.eventCount,
		Malformed: ps.malformedCount,
		Duration:  now.Sub(ps.lastReset),
	}

	ps.packetCount = 0
	ps.byteCount = 0
	ps.eventCount = 0
	ps.malformedCount = 0
	ps.lastReset = now

	return s
}

// LogStats logs per-second rates for the interval since the last call
func (ps *PacketStats) LogStats() {
	s := ps.GetAndReset()
	if s.Packets == 0 && s.Malformed == 0 {
		return
	}
	secs := s.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("DVS stats (/sec): %.1f KB, %.1f packets, %s events",
		float64(s.Bytes)/secs/1024, float64(s.Packets)/secs, FormatWithCommas(int64(float64(s.Events)/secs)))
	if s.Malformed > 0 {
		msg += fmt.Sprintf(", %d malformed", s.Malformed)
	}
	monitoring.Logf("%s", msg)
}

// FormatWithCommas formats a number with thousands separators
func FormatWithCommas(n int64) string {
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}

// noopStats is a PacketStatsInterface implementation that does nothing.
// It is used as a safe default when no stats collector is provided.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddEvents(count int) {}
func (n *noopStats) AddMalformed()       {}
func (n *noopStats) LogStats()           {}
