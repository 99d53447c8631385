package dvs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/testutil"
)

func TestTotalDurationSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		timestamps []int64
		want       int64
	}{
		{"single event", []int64{5_000_000}, 0},
		{"sub second span", []int64{0, 999_999}, 0},
		{"exact seconds", []int64{0, 2_000_000}, 2},
		{"truncates", []int64{1_000_000, 3_500_000}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dvs.TotalDurationSeconds(testutil.EventsAt(1, 1, tt.timestamps...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalDurationSeconds_Empty(t *testing.T) {
	t.Parallel()

	_, err := dvs.TotalDurationSeconds(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dvs.ErrEmptyStream))

	var emptyErr *dvs.EmptyStreamError
	assert.True(t, errors.As(err, &emptyErr))
}

func TestSecondBoundaryIndex(t *testing.T) {
	t.Parallel()

	stream := testutil.EventsAt(0, 0, 100, 400_000, 1_000_100, 1_200_000, 2_000_100)

	idx, err := dvs.SecondBoundaryIndex(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = dvs.SecondBoundaryIndex(stream, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	idx, err = dvs.SecondBoundaryIndex(stream, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, idx)

	_, err = dvs.SecondBoundaryIndex(stream, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, dvs.ErrIndexOverrun)
}

func TestBoundaryCursor_ForwardOnly(t *testing.T) {
	t.Parallel()

	stream := testutil.EvenlySpaced(50, 0, 100_000, 8, 8) // 5 seconds of events
	c, err := dvs.NewBoundaryCursor(stream)
	require.NoError(t, err)

	prev := 0
	for sec := int64(0); sec <= 4; sec++ {
		idx, err := c.Next(sec)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, idx, prev)
		assert.Equal(t, int(sec*10), idx)
		prev = idx
	}

	_, err = c.Next(5)
	var overrun *dvs.IndexOverrunError
	require.ErrorAs(t, err, &overrun)
	assert.Equal(t, int64(5), overrun.Second)
	assert.Equal(t, 50, overrun.Len)
	assert.Equal(t, 50, c.Pos())
}

func TestNewBoundaryCursor_Empty(t *testing.T) {
	t.Parallel()

	_, err := dvs.NewBoundaryCursor([]dvs.PolarityEvent{})
	assert.ErrorIs(t, err, dvs.ErrEmptyStream)
}

func TestEventsBefore(t *testing.T) {
	t.Parallel()

	stream := testutil.EventsAt(0, 0, 10, 20, 1_000_010, 2_500_000)
	assert.Len(t, dvs.EventsBefore(stream, 1), 2)
	assert.Len(t, dvs.EventsBefore(stream, 2), 3)
	assert.Len(t, dvs.EventsBefore(stream, 10), 4)
	assert.Empty(t, dvs.EventsBefore(stream, 0))
}

func TestFilterValid(t *testing.T) {
	t.Parallel()

	stream := testutil.EventsAt(3, 4, 1, 2, 3, 4)
	assert.Equal(t, stream, dvs.FilterValid(stream))

	stream[1].Valid = false
	stream[3].Valid = false
	got := dvs.FilterValid(stream)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Timestamp)
	assert.Equal(t, int64(3), got[1].Timestamp)
	assert.False(t, stream[1].Valid, "input must not be modified")
}

func TestPolarityEvent_SignAndString(t *testing.T) {
	t.Parallel()

	on := dvs.PolarityEvent{Timestamp: 42, X: 1, Y: 2, Polarity: true, Valid: true}
	off := dvs.PolarityEvent{Timestamp: 43, X: 3, Y: 4, Valid: true}
	assert.Equal(t, int8(1), on.Sign())
	assert.Equal(t, int8(-1), off.Sign())
	assert.Equal(t, "DVS 42 1 2 1", on.String())
	assert.Equal(t, "DVS 43 3 4 0", off.String())
}
