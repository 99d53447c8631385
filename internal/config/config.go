// Package config loads streaming and receiving parameters.
//
// Values are layered, lowest precedence first: built-in defaults, an
// optional YAML file, DVSTREAM_* environment variables, then explicit
// overrides (command-line flags).
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/banshee-data/dvstream/internal/tensor"
	"github.com/banshee-data/dvstream/internal/wire"
)

// Config holds every tunable of a sender, listener or offline conversion.
type Config struct {
	// ContainerInterval is the pause between containers from the synthetic
	// source.
	ContainerInterval time.Duration `koanf:"container_interval"`
	// BufferSize is the number of events per synthetic container.
	BufferSize int `koanf:"buffer_size"`

	Port             int    `koanf:"port"`
	BindAddress      string `koanf:"bind_address"`
	Destination      string `koanf:"destination"`
	IncludeTimestamp bool   `koanf:"include_timestamp"`
	MaxDatagramBytes int    `koanf:"max_datagram_bytes"`
	// MaxPackets stops a session once this many datagrams have been sent.
	// Zero means unbounded.
	MaxPackets int `koanf:"max_packets"`

	RecordingPath string `koanf:"recording_path"`
	DatabasePath  string `koanf:"database_path"`
	CapturePath   string `koanf:"capture_path"`
	MetricsAddr   string `koanf:"metrics_addr"`

	// ReplaySpeed scales recording playback; 1 is real time and 0 replays
	// without pauses.
	ReplaySpeed float64 `koanf:"replay_speed"`

	WindowSize int64  `koanf:"window_size"` // µs
	WindowStep int64  `koanf:"window_step"` // µs
	Reduction  string `koanf:"reduction"`

	Verbose bool `koanf:"verbose"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		ContainerInterval: 10 * time.Millisecond,
		BufferSize:        1024,
		Port:              wire.DefaultPort,
		BindAddress:       "::",
		Destination:       "127.0.0.1",
		MaxDatagramBytes:  wire.DefaultMaxDatagramBytes,
		ReplaySpeed:       1,
		WindowSize:        50_000,
		WindowStep:        50_000,
		Reduction:         tensor.ReduceSum.String(),
	}
}

// Layout returns the wire layout selected by the configuration.
func (c *Config) Layout() wire.Layout {
	return wire.Layout{IncludeTimestamp: c.IncludeTimestamp, MaxDatagramBytes: c.MaxDatagramBytes}
}

// DestinationAddr joins Destination and Port.
func (c *Config) DestinationAddr() string {
	return net.JoinHostPort(c.Destination, strconv.Itoa(c.Port))
}

// ListenAddr joins BindAddress and Port.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// WindowConfig returns the window parameters used by offline conversion
// for a sensor of the given extent.
func (c *Config) WindowConfig(width, height int64) tensor.WindowConfig {
	return tensor.WindowConfig{
		Size:   c.WindowSize,
		Step:   c.WindowStep,
		Scale:  tensor.UnitScale,
		Width:  width,
		Height: height,
	}
}

// Validate checks every field and returns the first problem as a
// *ConfigurationError.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return invalid("port", "must be between 1 and 65535, got %d", c.Port)
	}
	if c.Destination == "" {
		return invalid("destination", "must not be empty")
	}
	if c.BufferSize <= 0 {
		return invalid("buffer_size", "must be positive, got %d", c.BufferSize)
	}
	if c.ContainerInterval < 0 {
		return invalid("container_interval", "must not be negative, got %s", c.ContainerInterval)
	}
	if c.MaxPackets < 0 {
		return invalid("max_packets", "must not be negative, got %d", c.MaxPackets)
	}
	if err := c.Layout().Validate(); err != nil {
		return &ConfigurationError{Field: "max_datagram_bytes", Reason: "unusable datagram budget", Err: err}
	}
	if c.ReplaySpeed < 0 {
		return invalid("replay_speed", "must not be negative, got %g", c.ReplaySpeed)
	}
	if c.WindowSize <= 0 {
		return invalid("window_size", "must be positive, got %d", c.WindowSize)
	}
	if c.WindowStep <= 0 {
		return invalid("window_step", "must be positive, got %d", c.WindowStep)
	}
	if _, err := tensor.ParseReduction(c.Reduction); err != nil {
		return &ConfigurationError{Field: "reduction", Reason: "unknown reduction", Err: err}
	}
	return nil
}
