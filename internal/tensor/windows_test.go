package tensor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dvstream/internal/dvs"
	"github.com/banshee-data/dvstream/internal/testutil"
)

func unitWindow(size, step int64) WindowConfig {
	return WindowConfig{Size: size, Step: step, Scale: UnitScale, Width: 64, Height: 64}
}

func TestBuildWindows_ThreeEventScenario(t *testing.T) {
	t.Parallel()

	stream := testutil.EventsAt(10, 20, 0, 500, 1200)
	windows, err := CollectWindows(stream, unitWindow(1000, 1000))
	require.NoError(t, err)
	require.Len(t, windows, 1)

	w := windows[0]
	assert.Equal(t, 0, w.Index)
	assert.Equal(t, int64(0), w.Start)
	want := &SparseTensor{
		Indices: [][3]int64{{0, 10, 20}, {500, 10, 20}},
		Values:  []int8{1, 1},
		Shape:   Shape{1000, 64, 64},
	}
	if diff := cmp.Diff(want, w.Tensor); diff != "" {
		t.Errorf("window tensor mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildWindows_Overlapping(t *testing.T) {
	t.Parallel()

	stream := testutil.EvenlySpaced(21, 0, 100, 64, 64) // 0..2000us
	windows, err := CollectWindows(stream, unitWindow(1000, 500))
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Equal(t, int64(0), windows[0].Start)
	assert.Equal(t, int64(500), windows[1].Start)
	for _, w := range windows {
		require.Equal(t, 10, w.Tensor.Len())
		assert.Equal(t, int64(0), w.Tensor.Indices[0][AxisT])
		assert.Equal(t, int64(900), w.Tensor.Indices[9][AxisT])
	}
	// The second window re-reads the overlap, starting at the event at 500us.
	assert.Equal(t, int64(stream[5].X), windows[1].Tensor.Indices[0][AxisX])
}

func TestBuildWindows_SparseRegionAdvances(t *testing.T) {
	t.Parallel()

	stream := testutil.EventsAt(1, 1, 0, 10, 5000, 10000)
	windows, err := CollectWindows(stream, unitWindow(1000, 1000))
	require.NoError(t, err)
	require.Len(t, windows, 9)

	counts := make([]int, len(windows))
	for i, w := range windows {
		counts[i] = w.Tensor.Len()
		assert.Equal(t, int64(i*1000), w.Start)
	}
	assert.Equal(t, []int{2, 0, 0, 0, 0, 1, 0, 0, 0}, counts)
}

func TestBuildWindows_StepLargerThanSize(t *testing.T) {
	t.Parallel()

	stream := testutil.EvenlySpaced(31, 0, 100, 64, 64) // 0..3000us
	windows, err := CollectWindows(stream, unitWindow(500, 1000))
	require.NoError(t, err)
	require.Len(t, windows, 3)
	for i, w := range windows {
		assert.Equal(t, int64(i*1000), w.Start)
		require.Equal(t, 5, w.Tensor.Len())
		for _, idx := range w.Tensor.Indices {
			assert.GreaterOrEqual(t, idx[AxisT], int64(0))
			assert.Less(t, idx[AxisT], int64(500))
		}
	}
}

func TestBuildWindows_Scale(t *testing.T) {
	t.Parallel()

	stream := []dvs.PolarityEvent{
		{Timestamp: 0, X: 9, Y: 17, Valid: true},
		{Timestamp: 999, X: 31, Y: 3, Polarity: true, Valid: true},
		{Timestamp: 5000, Valid: true},
	}
	cfg := WindowConfig{Size: 1000, Step: 1000, Scale: Scale{T: 100, X: 4, Y: 2}, Width: 8, Height: 16}
	windows, err := CollectWindows(stream, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, windows)

	w := windows[0].Tensor
	assert.Equal(t, [][3]int64{{0, 2, 8}, {9, 7, 1}}, w.Indices)
	assert.Equal(t, []int8{-1, 1}, w.Values)
	assert.Equal(t, Shape{1000, 8, 16}, w.Shape)
}

func TestBuildWindows_SkipsInvalid(t *testing.T) {
	t.Parallel()

	stream := testutil.EventsAt(2, 2, 0, 100, 200, 5000)
	stream[1].Valid = false
	windows, err := CollectWindows(stream, unitWindow(1000, 1000))
	require.NoError(t, err)
	require.NotEmpty(t, windows)
	assert.Equal(t, 2, windows[0].Tensor.Len())
}

func TestBuildWindows_Lazy(t *testing.T) {
	t.Parallel()

	stream := testutil.EvenlySpaced(1000, 0, 100, 64, 64)
	seq, err := BuildWindows(stream, unitWindow(1000, 100))
	require.NoError(t, err)

	seen := 0
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

// Every emitted local time stays inside the window and starts advance by
// exactly one step, for any ordered stream.
func TestBuildWindows_MonotonicProperty(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 20; seed++ {
		stream := testutil.RandomStream(seed, 400, 250, 64, 64, 7)
		for _, c := range []struct{ size, step int64 }{{1000, 1000}, {1000, 250}, {2000, 999}, {500, 7}} {
			windows, err := CollectWindows(stream, unitWindow(c.size, c.step))
			require.NoError(t, err)
			for i, w := range windows {
				assert.Equal(t, i, w.Index)
				if i > 0 {
					assert.Equal(t, c.step, w.Start-windows[i-1].Start)
				}
				for _, idx := range w.Tensor.Indices {
					if idx[AxisT] < 0 || idx[AxisT] >= c.size {
						t.Fatalf("seed %d size %d step %d: local time %d outside window %d", seed, c.size, c.step, idx[AxisT], i)
					}
				}
			}
		}
	}
}

// Each window holds exactly the valid events inside [start, start+size).
func TestBuildWindows_MatchesBruteForce(t *testing.T) {
	t.Parallel()

	stream := testutil.RandomStream(99, 300, 400, 32, 32, 5)
	valid := dvs.FilterValid(stream)
	cfg := unitWindow(1500, 600)
	windows, err := CollectWindows(stream, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, windows)

	for _, w := range windows {
		want := 0
		for _, ev := range valid {
			if ev.Timestamp >= w.Start && ev.Timestamp < w.Start+cfg.Size {
				want++
			}
		}
		assert.Equal(t, want, w.Tensor.Len(), "window %d at %d", w.Index, w.Start)
	}
}

func TestBuildWindows_Errors(t *testing.T) {
	t.Parallel()

	stream := testutil.EventsAt(1, 1, 0, 5000)
	bad := []WindowConfig{
		{Size: 0, Step: 1, Scale: UnitScale, Width: 1, Height: 1},
		{Size: 1, Step: 0, Scale: UnitScale, Width: 1, Height: 1},
		{Size: 1, Step: 1, Scale: Scale{T: 1, X: 0, Y: 1}, Width: 1, Height: 1},
		{Size: 1, Step: 1, Scale: UnitScale, Width: 0, Height: 1},
	}
	for _, cfg := range bad {
		_, err := BuildWindows(stream, cfg)
		assert.ErrorIs(t, err, ErrInvalidWindow, "%+v", cfg)
	}

	_, err := BuildWindows(nil, unitWindow(10, 10))
	assert.ErrorIs(t, err, dvs.ErrEmptyStream)
}

func TestBuildWindows_ShortStream(t *testing.T) {
	t.Parallel()

	// The whole stream fits inside one window size: no full window exists.
	windows, err := CollectWindows(testutil.EventsAt(1, 1, 0, 400, 900), unitWindow(1000, 1000))
	require.NoError(t, err)
	assert.Empty(t, windows)
}
