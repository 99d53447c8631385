// Package tensor converts polarity event streams into sparse tensors.
//
// Three conversions are provided: a single tensor over a whole stream
// (BuildTensor), a lazy sequence of fixed-size, possibly overlapping time
// windows (BuildWindows), and per-second slicing with frame aggregation
// (SplitBySecond, FramesFromEvents). Everything here is a pure function of
// its input stream: no I/O, no shared state.
//
// Tensors are produced as (index, value, shape) triples. Index tuples are
// (time, x, y) and values are the polarity sign (+1 or -1). Constructing a
// tensor object in a numeric library is left to the caller.
package tensor
