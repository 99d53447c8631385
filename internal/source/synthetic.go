package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/timeutil"
)

// SyntheticConfig describes generated sensor output.
type SyntheticConfig struct {
	Width, Height uint16
	// ContainerSize is the number of events per container.
	ContainerSize int
	// Interval is both the pause between containers and the span of
	// sensor time each container covers.
	Interval time.Duration
	// Containers bounds the output; zero generates forever.
	Containers int
	// InvalidEvery marks roughly one event in n as invalid; zero keeps
	// every event valid.
	InvalidEvery int
	Seed         int64
	Clock        timeutil.Clock
}

// Synthetic generates random events in the shape of a sensor driver's
// output: containers of a fixed size arriving at a fixed interval, with
// timestamps spread evenly across the interval.
type Synthetic struct {
	cfg     SyntheticConfig
	rng     *rand.Rand
	emitted int
	ts      int64
}

// NewSynthetic validates cfg and returns a generator.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	switch {
	case cfg.Width == 0 || cfg.Height == 0:
		return nil, fmt.Errorf("sensor size must be positive, got %dx%d", cfg.Width, cfg.Height)
	case cfg.ContainerSize <= 0:
		return nil, fmt.Errorf("container size must be positive, got %d", cfg.ContainerSize)
	case cfg.Interval < 0:
		return nil, fmt.Errorf("interval must not be negative, got %s", cfg.Interval)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Synthetic{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// NextContainer waits one interval, except before the first container, and
// returns a freshly generated container.
func (s *Synthetic) NextContainer(ctx context.Context) ([]dvs.PolarityEvent, error) {
	if s.cfg.Containers > 0 && s.emitted >= s.cfg.Containers {
		return nil, ErrEnd
	}
	wait := s.cfg.Interval
	if s.emitted == 0 {
		wait = 0
	}
	if err := timeutil.Sleep(ctx, s.cfg.Clock, wait); err != nil {
		return nil, err
	}

	span := s.cfg.Interval.Microseconds()
	events := make([]dvs.PolarityEvent, s.cfg.ContainerSize)
	for i := range events {
		events[i] = dvs.PolarityEvent{
			Timestamp: s.ts + span*int64(i)/int64(len(events)),
			X:         uint16(s.rng.Intn(int(s.cfg.Width))),
			Y:         uint16(s.rng.Intn(int(s.cfg.Height))),
			Polarity:  s.rng.Intn(2) == 1,
			Valid:     s.cfg.InvalidEvery == 0 || s.rng.Intn(s.cfg.InvalidEvery) != 0,
		}
	}
	s.ts += max(span, 1)
	s.emitted++
	return events, nil
}
