// Package dvs owns the polarity event data model shared by the tensor
// builder and the wire codec.
//
// Responsibilities: the PolarityEvent value type, stream-level queries
// (duration, per-second boundaries) and the errors those queries return.
// Streams are plain slices ordered by non-decreasing timestamp; callers own
// that order and nothing in this package re-sorts.
package dvs
