package tensor

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dvstream/internal/dvs"
)

// SplitBySecond partitions stream into TotalDurationSeconds+1 contiguous
// slices. Slice k holds every event whose elapsed time since the first
// event is at least k and less than k+1 seconds. The slices share stream's
// backing array and, concatenated in order, reproduce it exactly.
//
// Unlike the tensor conversions, invalid events are not filtered: they stay
// in the slice their timestamp falls in, so the partition covers the raw
// stream. FramesFromEventsWith filters before splitting.
func SplitBySecond(stream []dvs.PolarityEvent) ([][]dvs.PolarityEvent, error) {
	total, err := dvs.TotalDurationSeconds(stream)
	if err != nil {
		return nil, err
	}
	cursor, err := dvs.NewBoundaryCursor(stream)
	if err != nil {
		return nil, err
	}

	slices := make([][]dvs.PolarityEvent, 0, total+1)
	begin := 0
	for sec := int64(1); sec <= total; sec++ {
		// The last event is at least total seconds in, so every boundary up
		// to total exists.
		end, err := cursor.Next(sec)
		if err != nil {
			return nil, err
		}
		slices = append(slices, stream[begin:end:end])
		begin = end
	}
	slices = append(slices, stream[begin:])
	return slices, nil
}

// Frame is the time-collapsed view of one second of events.
type Frame struct {
	Second int64      // seconds since the first event
	Events int        // valid events that contributed
	Data   *mat.Dense // x rows by y columns
}

// FramesFromEvents collapses each one-second slice of stream into a frame by
// summing polarity signs over time. Frames are ordered oldest first and all
// share the dimensions of the whole stream, so there is exactly one frame
// per second including seconds without events.
func FramesFromEvents(stream []dvs.PolarityEvent) ([]Frame, error) {
	return FramesFromEventsWith(stream, ReduceSum)
}

// FramesFromEventsWith is FramesFromEvents with a chosen reduction.
func FramesFromEventsWith(stream []dvs.PolarityEvent, r Reduction) ([]Frame, error) {
	stream = dvs.FilterValid(stream)
	slices, err := SplitBySecond(stream)
	if err != nil {
		return nil, err
	}

	var width, height int64
	for _, ev := range stream {
		width = max(width, int64(ev.X)+1)
		height = max(height, int64(ev.Y)+1)
	}
	shape := Shape{dvs.MicrosPerSecond, width, height}

	frames := make([]Frame, len(slices))
	for k, slice := range slices {
		frames[k] = Frame{Second: int64(k), Events: len(slice)}
		if len(slice) == 0 {
			frames[k].Data = mat.NewDense(int(width), int(height), nil)
			continue
		}
		t, err := BuildTensor(slice, &shape)
		if err != nil {
			return nil, err
		}
		if frames[k].Data, err = t.Collapse(r); err != nil {
			return nil, err
		}
	}
	return frames, nil
}
