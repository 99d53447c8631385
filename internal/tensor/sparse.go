package tensor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Axis positions inside an index tuple and a shape.
const (
	AxisT = 0
	AxisX = 1
	AxisY = 2
)

// ErrOutOfShape is returned when a tensor entry lies outside the requested
// dense extents.
var ErrOutOfShape = errors.New("tensor index outside shape")

// Shape holds the dense extents of a tensor in (time, x, y) order.
type Shape [3]int64

// SparseTensor is a coordinate-format tensor: parallel index and value
// slices plus dense extents. Coinciding indices are kept as separate
// entries; coalescing them is up to the consumer.
type SparseTensor struct {
	Indices [][3]int64
	Values  []int8
	Shape   Shape
}

// Len returns the number of stored entries.
func (t *SparseTensor) Len() int { return len(t.Values) }

func (t *SparseTensor) add(idx [3]int64, v int8) {
	t.Indices = append(t.Indices, idx)
	t.Values = append(t.Values, v)
}

// COO returns the indices laid out one row per axis, the layout most
// numeric libraries accept for sparse construction.
func (t *SparseTensor) COO() (indices [3][]int64, values []int8) {
	for axis := range indices {
		indices[axis] = make([]int64, len(t.Indices))
	}
	for i, idx := range t.Indices {
		indices[AxisT][i] = idx[AxisT]
		indices[AxisX][i] = idx[AxisX]
		indices[AxisY][i] = idx[AxisY]
	}
	return indices, t.Values
}

// Reduction selects how entries that land on the same (x, y) cell are
// combined when the time axis is collapsed.
type Reduction int

const (
	// ReduceSum adds polarity signs, giving the net brightness change.
	ReduceSum Reduction = iota
	// ReduceMax keeps the largest sign seen at the cell.
	ReduceMax
	// ReduceFirst keeps the earliest written sign.
	ReduceFirst
)

func (r Reduction) String() string {
	switch r {
	case ReduceSum:
		return "sum"
	case ReduceMax:
		return "max"
	case ReduceFirst:
		return "first"
	default:
		return fmt.Sprintf("Reduction(%d)", int(r))
	}
}

// ParseReduction maps a reduction name back to its value.
func ParseReduction(s string) (Reduction, error) {
	switch s {
	case "", "sum":
		return ReduceSum, nil
	case "max":
		return ReduceMax, nil
	case "first":
		return ReduceFirst, nil
	}
	return 0, fmt.Errorf("unknown reduction %q", s)
}

// Collapse reduces the time axis, returning an X-by-Y dense matrix sized
// from the tensor's shape. Cells with no entries are zero.
func (t *SparseTensor) Collapse(r Reduction) (*mat.Dense, error) {
	rows, cols := int(t.Shape[AxisX]), int(t.Shape[AxisY])
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("cannot collapse tensor with shape %v", t.Shape)
	}
	m := mat.NewDense(rows, cols, nil)
	written := make([]bool, rows*cols)
	for i, idx := range t.Indices {
		x, y := int(idx[AxisX]), int(idx[AxisY])
		if x < 0 || x >= rows || y < 0 || y >= cols {
			return nil, fmt.Errorf("%w: entry %d at (%d, %d), shape %v", ErrOutOfShape, i, x, y, t.Shape)
		}
		v := float64(t.Values[i])
		cell := x*cols + y
		switch {
		case !written[cell]:
			m.Set(x, y, v)
			written[cell] = true
		case r == ReduceSum:
			m.Set(x, y, m.At(x, y)+v)
		case r == ReduceMax:
			if v > m.At(x, y) {
				m.Set(x, y, v)
			}
		}
	}
	return m, nil
}
