// Package source supplies containers of polarity events to a streaming
// session. A container is the batch of events a sensor driver hands over
// at once; its size and timing are up to the source.
package source

import (
	"context"
	"errors"

	"github.com/banshee-data/dvstream/internal/dvs"
)

// ErrEnd is returned by NextContainer once a source is exhausted.
var ErrEnd = errors.New("end of event source")

// EventSource yields event containers in time order. Implementations block
// until a container is ready and honour ctx cancellation while doing so.
type EventSource interface {
	NextContainer(ctx context.Context) ([]dvs.PolarityEvent, error)
}

// Static yields fixed containers, then ErrEnd.
type Static struct {
	containers [][]dvs.PolarityEvent
	next       int
}

// FromContainers returns a source over the given containers.
func FromContainers(containers ...[]dvs.PolarityEvent) *Static {
	return &Static{containers: containers}
}

// NextContainer returns the next container.
func (s *Static) NextContainer(ctx context.Context) ([]dvs.PolarityEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.containers) {
		return nil, ErrEnd
	}
	c := s.containers[s.next]
	s.next++
	return c, nil
}
