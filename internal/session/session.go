// Package session runs the encode-and-send loop of one outbound stream.
//
// A Controller pulls containers from an event source, encodes each one into
// datagrams and hands them to a sink. Cancellation of the context passed to
// Run is observed once per container, so a container that has started
// encoding is always flushed completely.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dvstream/internal/monitoring"
	"github.com/banshee-data/dvstream/internal/source"
	"github.com/banshee-data/dvstream/internal/wire"
)

// StopReason says why a session ended without error.
type StopReason string

const (
	StopSourceEnd      StopReason = "source exhausted"
	StopPacketLimit    StopReason = "packet limit reached"
	StopContainerLimit StopReason = "container limit reached"
	StopCancelled      StopReason = "cancelled"
)

// Config bounds a session. Zero limits are unbounded.
type Config struct {
	Layout        wire.Layout
	MaxPackets    int
	MaxContainers int
	// LogEvery logs progress after this many containers; zero disables
	// progress lines.
	LogEvery int
}

// Observer is told about every encoded container.
type Observer interface {
	ObserveContainer(stats wire.EncodeStats)
}

// Summary reports what a session did.
type Summary struct {
	SessionID  uuid.UUID
	Containers int
	wire.EncodeStats
	Reason   StopReason
	Duration time.Duration
}

// Controller owns the encoder and the sink for one session.
type Controller struct {
	id       uuid.UUID
	cfg      Config
	src      source.EventSource
	enc      *wire.Encoder
	recorder wire.EventRecorder
	observer Observer
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder logs every valid event as it is encoded.
func WithRecorder(r wire.EventRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithObserver reports per-container statistics.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithSessionID fixes the session ID instead of generating one.
func WithSessionID(id uuid.UUID) Option {
	return func(c *Controller) { c.id = id }
}

// New validates cfg and prepares a session. Nothing is read or sent until
// Run.
func New(cfg Config, src source.EventSource, sink wire.DatagramSink, opts ...Option) (*Controller, error) {
	if src == nil || sink == nil {
		return nil, errors.New("session needs an event source and a datagram sink")
	}
	if cfg.MaxPackets < 0 || cfg.MaxContainers < 0 {
		return nil, fmt.Errorf("session limits must not be negative: packets=%d containers=%d", cfg.MaxPackets, cfg.MaxContainers)
	}
	c := &Controller{cfg: cfg, src: src, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}

	var encOpts []wire.EncoderOption
	if c.recorder != nil {
		encOpts = append(encOpts, wire.WithRecorder(c.recorder))
	}
	enc, err := wire.NewEncoder(cfg.Layout, sink, encOpts...)
	if err != nil {
		return nil, err
	}
	c.enc = enc
	return c, nil
}

// ID returns the session ID.
func (c *Controller) ID() uuid.UUID { return c.id }

// Run streams containers until the source ends, a limit is reached or ctx
// is cancelled; those all return a nil error. Codec and transport errors
// end the session and are returned with the summary so far.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	started := c.now()
	sum := Summary{SessionID: c.id}
	layout := c.cfg.Layout
	monitoring.Logf("Session %s started: include_timestamp=%t max_datagram_bytes=%d events_per_datagram=%d max_packets=%d",
		c.id, layout.IncludeTimestamp, layout.MaxDatagramBytes, layout.MaxEventsPerPacket(), c.cfg.MaxPackets)

	finish := func(reason StopReason) Summary {
		sum.Reason = reason
		sum.Duration = c.now().Sub(started)
		monitoring.Logf("Session %s stopped (%s): containers=%d events=%d skipped=%d datagrams=%d bytes=%d",
			c.id, reason, sum.Containers, sum.Events, sum.Skipped, sum.Datagrams, sum.Bytes)
		return sum
	}

	for {
		if ctx.Err() != nil {
			return finish(StopCancelled), nil
		}

		container, err := c.src.NextContainer(ctx)
		switch {
		case errors.Is(err, source.ErrEnd):
			return finish(StopSourceEnd), nil
		case err != nil && ctx.Err() != nil:
			return finish(StopCancelled), nil
		case err != nil:
			return finish(""), fmt.Errorf("session %s: next container: %w", c.id, err)
		}

		stats, err := c.enc.EncodeContainer(container)
		sum.Containers++
		sum.EncodeStats.Add(stats)
		if c.observer != nil {
			c.observer.ObserveContainer(stats)
		}
		if err != nil {
			return finish(""), fmt.Errorf("session %s: container %d: %w", c.id, sum.Containers, err)
		}

		monitoring.Debugf("container %d: events=%d skipped=%d datagrams=%d",
			sum.Containers, stats.Events, stats.Skipped, stats.Datagrams)
		if c.cfg.LogEvery > 0 && sum.Containers%c.cfg.LogEvery == 0 {
			monitoring.Logf("Session %s progress: containers=%d events=%d datagrams=%d",
				c.id, sum.Containers, sum.Events, sum.Datagrams)
		}

		if c.cfg.MaxPackets > 0 && sum.Datagrams >= c.cfg.MaxPackets {
			return finish(StopPacketLimit), nil
		}
		if c.cfg.MaxContainers > 0 && sum.Containers >= c.cfg.MaxContainers {
			return finish(StopContainerLimit), nil
		}
	}
}
