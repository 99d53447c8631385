package tensor

import (
	"github.com/banshee-data/dvstream/internal/dvs"
)

// BuildTensor converts a whole stream into one sparse tensor. Each valid
// event becomes the entry (t, x, y) = (timestamp - first timestamp, x, y)
// with its polarity sign as value.
//
// When shape is nil the time extent defaults to the span of the stream and
// the tensor shape is inferred from the entries. Otherwise shape[AxisT] is
// the maximum duration and the shape is used as given. Conversion stops,
// without error, at the first event whose local time reaches the maximum
// duration; with the default span this excludes the final event.
func BuildTensor(stream []dvs.PolarityEvent, shape *Shape) (*SparseTensor, error) {
	stream = dvs.FilterValid(stream)
	if len(stream) == 0 {
		return nil, &dvs.EmptyStreamError{Op: "build tensor"}
	}

	origin := stream[0].Timestamp
	maxDuration := stream[len(stream)-1].Timestamp - origin
	if shape != nil {
		maxDuration = shape[AxisT]
	}

	t := &SparseTensor{
		Indices: make([][3]int64, 0, len(stream)),
		Values:  make([]int8, 0, len(stream)),
	}
	for _, ev := range stream {
		local := ev.Timestamp - origin
		if local >= maxDuration {
			break
		}
		t.add([3]int64{local, int64(ev.X), int64(ev.Y)}, ev.Sign())
	}

	if shape != nil {
		t.Shape = *shape
	} else {
		t.Shape = inferShape(t.Indices)
	}
	return t, nil
}

// inferShape returns the smallest extents that contain every index.
func inferShape(indices [][3]int64) Shape {
	var s Shape
	for _, idx := range indices {
		for axis, v := range idx {
			if v+1 > s[axis] {
				s[axis] = v + 1
			}
		}
	}
	return s
}
