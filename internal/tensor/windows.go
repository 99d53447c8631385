package tensor

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/banshee-data/dvstream/internal/dvs"
)

// ErrInvalidWindow reports an unusable window configuration.
var ErrInvalidWindow = errors.New("invalid window configuration")

// Scale divides each index axis before truncation. The zero value is not
// usable; start from UnitScale.
type Scale struct {
	T, X, Y float64
}

// UnitScale leaves indices unquantized.
var UnitScale = Scale{T: 1, X: 1, Y: 1}

// WindowConfig describes a sliding-window conversion. Size and Step are in
// microseconds; Width and Height are the x and y extents of every emitted
// tensor. A Step smaller than Size gives overlapping windows.
type WindowConfig struct {
	Size   int64
	Step   int64
	Scale  Scale
	Width  int64
	Height int64
}

// Validate checks that every field is positive.
func (c WindowConfig) Validate() error {
	switch {
	case c.Size <= 0:
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidWindow, c.Size)
	case c.Step <= 0:
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidWindow, c.Step)
	case c.Scale.T <= 0 || c.Scale.X <= 0 || c.Scale.Y <= 0:
		return fmt.Errorf("%w: scale components must be positive, got %+v", ErrInvalidWindow, c.Scale)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: image dimensions must be positive, got %dx%d", ErrInvalidWindow, c.Width, c.Height)
	}
	return nil
}

// Window is one emitted slice of the stream.
type Window struct {
	Index  int   // ordinal, starting at 0
	Start  int64 // absolute timestamp of the window start
	Tensor *SparseTensor
}

// windowScan is the state carried from one window to the next: where the
// window starts and where reading resumes. Reading resumes at the first
// event that belongs to the next window rather than at the start of the
// stream, so overlapping windows cost one pass plus the overlap.
type windowScan struct {
	ordinal int
	start   int64
	idx     int
}

// BuildWindows returns the windows of stream as a lazy, finite sequence.
//
// The first window starts at the first valid event. Each window holds the
// events in [start, start+Size) with index (⌊(ts-start)/Scale.T⌋,
// ⌊x/Scale.X⌋, ⌊y/Scale.Y⌋) and shape (Size, Width, Height). Successive
// windows start Step microseconds apart. The sequence ends once the start
// reaches lastTimestamp-Size, so a trailing partial window is never emitted.
func BuildWindows(stream []dvs.PolarityEvent, cfg WindowConfig) (iter.Seq[Window], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stream = dvs.FilterValid(stream)
	if len(stream) == 0 {
		return nil, &dvs.EmptyStreamError{Op: "build windows"}
	}

	last := stream[len(stream)-1].Timestamp
	return func(yield func(Window) bool) {
		scan := windowScan{start: stream[0].Timestamp}
		for scan.start < last-cfg.Size {
			var w Window
			w, scan = scan.window(stream, cfg)
			if !yield(w) {
				return
			}
		}
	}, nil
}

// CollectWindows materialises every window of stream.
func CollectWindows(stream []dvs.PolarityEvent, cfg WindowConfig) ([]Window, error) {
	seq, err := BuildWindows(stream, cfg)
	if err != nil {
		return nil, err
	}
	var out []Window
	for w := range seq {
		out = append(out, w)
	}
	return out, nil
}

// window builds the tensor for the current scan state and returns the state
// for the following window.
func (s windowScan) window(stream []dvs.PolarityEvent, cfg WindowConfig) (Window, windowScan) {
	end := s.start + cfg.Size
	resume := s.start + cfg.Step

	t := &SparseTensor{Shape: Shape{cfg.Size, cfg.Width, cfg.Height}}
	next := -1
	i := s.idx
	for ; i < len(stream) && stream[i].Timestamp < end; i++ {
		ev := stream[i]
		t.add([3]int64{
			quantize(ev.Timestamp-s.start, cfg.Scale.T),
			quantize(int64(ev.X), cfg.Scale.X),
			quantize(int64(ev.Y), cfg.Scale.Y),
		}, ev.Sign())
		if next < 0 && ev.Timestamp >= resume {
			next = i
		}
	}

	// No event inside the window reached the next start. Resume at the first
	// event at or after it, which is where the scan stopped unless Step is
	// larger than Size.
	if next < 0 {
		next = i
		for next < len(stream) && stream[next].Timestamp < resume {
			next++
		}
	}

	w := Window{Index: s.ordinal, Start: s.start, Tensor: t}
	return w, windowScan{ordinal: s.ordinal + 1, start: resume, idx: next}
}

func quantize(v int64, scale float64) int64 {
	if scale == 1 {
		return v
	}
	return int64(math.Floor(float64(v) / scale))
}
