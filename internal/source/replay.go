package source

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/monitoring"
	"github.com/banshee-data/dvstream/internal/timeutil"
)

// ReplayConfig controls how a recorded stream is played back.
type ReplayConfig struct {
	// ContainerSize is the number of events per container.
	ContainerSize int
	// Speed scales the recorded pacing; 1 is real time and 0 disables
	// pacing entirely.
	Speed float64
	// Clock paces playback; nil uses the real clock.
	Clock timeutil.Clock
}

// Replay plays back a recorded stream in fixed-size containers, waiting
// between containers for the recorded time between their first events.
type Replay struct {
	events []dvs.PolarityEvent
	cfg    ReplayConfig
	pos    int
	prevTS int64
}

// NewReplay wraps events, which must be in timestamp order.
func NewReplay(events []dvs.PolarityEvent, cfg ReplayConfig) (*Replay, error) {
	if cfg.ContainerSize <= 0 {
		return nil, fmt.Errorf("container size must be positive, got %d", cfg.ContainerSize)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Replay{events: events, cfg: cfg}, nil
}

// NextContainer waits until the next container is due and returns it.
func (r *Replay) NextContainer(ctx context.Context) ([]dvs.PolarityEvent, error) {
	if r.pos >= len(r.events) {
		return nil, ErrEnd
	}
	end := min(r.pos+r.cfg.ContainerSize, len(r.events))
	container := r.events[r.pos:end]

	first := container[0].Timestamp
	if r.pos > 0 {
		gap := time.Duration(first-r.prevTS) * time.Microsecond
		if err := timeutil.Sleep(ctx, r.cfg.Clock, timeutil.ScaleDuration(gap, r.cfg.Speed)); err != nil {
			return nil, err
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.prevTS = first
	r.pos = end
	monitoring.Debugf("replay container: %d events from ts=%d", len(container), first)
	return container, nil
}

// Remaining returns the number of events not yet handed out.
func (r *Replay) Remaining() int { return len(r.events) - r.pos }
