package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/network"
	"github.com/banshee-data/dvstream/internal/source"
	"github.com/banshee-data/dvstream/internal/testutil"
	"github.com/banshee-data/dvstream/internal/wire"
)

// captureSink records datagram sizes and can fail or cancel on demand.
type captureSink struct {
	sizes    []int
	failAt   int // 1-based datagram that fails; 0 never fails
	err      error
	onSend   func(n int)
	payloads [][]byte
}

func (s *captureSink) SendDatagram(p []byte) error {
	if s.failAt > 0 && len(s.sizes)+1 == s.failAt {
		return s.err
	}
	s.sizes = append(s.sizes, len(p))
	s.payloads = append(s.payloads, append([]byte(nil), p...))
	if s.onSend != nil {
		s.onSend(len(s.sizes))
	}
	return nil
}

type recorderFunc func(dvs.PolarityEvent) error

func (f recorderFunc) Record(ev dvs.PolarityEvent) error { return f(ev) }

type observerFunc func(wire.EncodeStats)

func (f observerFunc) ObserveContainer(s wire.EncodeStats) { f(s) }

func newController(t *testing.T, cfg Config, src source.EventSource, sink wire.DatagramSink, opts ...Option) *Controller {
	t.Helper()
	c, err := New(cfg, src, sink, opts...)
	require.NoError(t, err)
	return c
}

func TestRun_FlushPolicyPerContainer(t *testing.T) {
	sink := &captureSink{}
	src := source.FromContainers(
		testutil.EvenlySpaced(130, 0, 10, 346, 260),
		testutil.EvenlySpaced(3, 2000, 10, 346, 260),
	)
	c := newController(t, Config{Layout: wire.DefaultLayout()}, src, sink)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{512, 8, 12}, sink.sizes)
	assert.Equal(t, StopSourceEnd, sum.Reason)
	assert.Equal(t, 2, sum.Containers)
	assert.Equal(t, 133, sum.Events)
	assert.Equal(t, 3, sum.Datagrams)
	assert.Equal(t, 532, sum.Bytes)
	assert.Equal(t, c.ID(), sum.SessionID)
}

func TestRun_PacketLimitCheckedPerContainer(t *testing.T) {
	sink := &captureSink{}
	container := testutil.EvenlySpaced(200, 0, 1, 64, 64)
	src := source.FromContainers(container, container, container)
	c := newController(t, Config{Layout: wire.DefaultLayout(), MaxPackets: 3}, src, sink)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)

	// The limit is reached inside the second container, which still
	// completes.
	assert.Equal(t, StopPacketLimit, sum.Reason)
	assert.Equal(t, 2, sum.Containers)
	assert.Equal(t, []int{512, 288, 512, 288}, sink.sizes)
}

func TestRun_ContainerLimit(t *testing.T) {
	src, err := source.NewSynthetic(source.SyntheticConfig{Width: 32, Height: 32, ContainerSize: 10, Seed: 1})
	require.NoError(t, err)
	sink := &captureSink{}
	c := newController(t, Config{Layout: wire.DefaultLayout(), MaxContainers: 4}, src, sink)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopContainerLimit, sum.Reason)
	assert.Equal(t, 4, sum.Containers)
	assert.Len(t, sink.sizes, 4)
}

func TestRun_CancellationFinishesContainer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while the first datagram of a two-datagram container is sent.
	sink := &captureSink{onSend: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	container := testutil.EvenlySpaced(130, 0, 1, 64, 64)
	src := source.FromContainers(container, container)
	c := newController(t, Config{Layout: wire.DefaultLayout()}, src, sink)

	sum, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, sum.Reason)
	assert.Equal(t, 1, sum.Containers)
	assert.Equal(t, []int{512, 8}, sink.sizes)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &captureSink{}
	c := newController(t, Config{Layout: wire.DefaultLayout()}, source.FromContainers(testutil.EventsAt(1, 1, 0)), sink)

	sum, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, sum.Reason)
	assert.Zero(t, sum.Containers)
	assert.Empty(t, sink.sizes)
}

func TestRun_TransportErrorIsFatal(t *testing.T) {
	sendErr := &network.TransportError{Op: "send", Addr: "127.0.0.1:4950", Err: errors.New("connection refused")}
	sink := &captureSink{failAt: 2, err: sendErr}
	container := testutil.EvenlySpaced(300, 0, 1, 64, 64)
	c := newController(t, Config{Layout: wire.DefaultLayout()}, source.FromContainers(container, container), sink)

	sum, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrTransport)
	assert.Equal(t, 1, sum.Containers)
	assert.Equal(t, 1, sum.Datagrams)
	assert.Equal(t, []int{512}, sink.sizes)
}

func TestRun_CoordinateRangeError(t *testing.T) {
	bad := testutil.EventsAt(10, 10, 0, 1, 2)
	bad[2].X = dvs.MaxCoordinate + 1
	sink := &captureSink{}
	c := newController(t, Config{Layout: wire.DefaultLayout()}, source.FromContainers(bad), sink)

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, wire.ErrCoordinateRange)
	assert.Empty(t, sink.sizes, "nothing from a bad container is sent")
}

func TestRun_SourceError(t *testing.T) {
	boom := errors.New("driver timeout")
	src := sourceFunc(func(context.Context) ([]dvs.PolarityEvent, error) { return nil, boom })
	c := newController(t, Config{Layout: wire.DefaultLayout()}, src, &captureSink{})

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

type sourceFunc func(context.Context) ([]dvs.PolarityEvent, error)

func (f sourceFunc) NextContainer(ctx context.Context) ([]dvs.PolarityEvent, error) { return f(ctx) }

func TestRun_RecorderAndObserver(t *testing.T) {
	container := testutil.RandomStream(9, 50, 5, 64, 64, 4)
	valid := dvs.FilterValid(container)

	var recorded []dvs.PolarityEvent
	var observed []wire.EncodeStats
	id := uuid.MustParse("6f1c2a8e-1f1b-4c3e-9d55-0a4a9b7c2d11")
	c := newController(t,
		Config{Layout: wire.Layout{IncludeTimestamp: true, MaxDatagramBytes: 512}, LogEvery: 1},
		source.FromContainers(container),
		&captureSink{},
		WithRecorder(recorderFunc(func(ev dvs.PolarityEvent) error {
			recorded = append(recorded, ev)
			return nil
		})),
		WithObserver(observerFunc(func(s wire.EncodeStats) { observed = append(observed, s) })),
		WithSessionID(id),
	)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, sum.SessionID)
	assert.Equal(t, valid, recorded)
	require.Len(t, observed, 1)
	assert.Equal(t, len(valid), observed[0].Events)
	assert.Equal(t, len(container)-len(valid), observed[0].Skipped)
}

func TestNew_Errors(t *testing.T) {
	src := source.FromContainers()
	_, err := New(Config{Layout: wire.DefaultLayout()}, nil, &captureSink{})
	assert.Error(t, err)
	_, err = New(Config{Layout: wire.DefaultLayout(), MaxPackets: -1}, src, &captureSink{})
	assert.Error(t, err)
	_, err = New(Config{Layout: wire.Layout{IncludeTimestamp: true, MaxDatagramBytes: 4}}, src, &captureSink{})
	assert.ErrorIs(t, err, wire.ErrInvalidLayout)
}
