package dvs

// TotalDurationSeconds returns the whole seconds between the first and last
// event of stream, truncating any fractional second.
func TotalDurationSeconds(stream []PolarityEvent) (int64, error) {
	if len(stream) == 0 {
		return 0, &EmptyStreamError{Op: "total duration"}
	}
	span := stream[len(stream)-1].Timestamp - stream[0].Timestamp
	return span / MicrosPerSecond, nil
}

// ElapsedSeconds returns the whole seconds between the start of stream and
// event i.
func ElapsedSeconds(stream []PolarityEvent, i int) int64 {
	return (stream[i].Timestamp - stream[0].Timestamp) / MicrosPerSecond
}

// BoundaryCursor finds per-second boundaries of a stream. It only ever
// moves forward, so a full pass over N seconds costs one scan of the stream.
// Seconds must be requested in non-decreasing order.
type BoundaryCursor struct {
	stream []PolarityEvent
	origin int64
	idx    int
}

// NewBoundaryCursor returns a cursor positioned at the start of stream.
func NewBoundaryCursor(stream []PolarityEvent) (*BoundaryCursor, error) {
	if len(stream) == 0 {
		return nil, &EmptyStreamError{Op: "boundary cursor"}
	}
	return &BoundaryCursor{stream: stream, origin: stream[0].Timestamp}, nil
}

// Next returns the smallest index whose timestamp is at least second seconds
// after the stream start, resuming from the previous boundary.
func (c *BoundaryCursor) Next(second int64) (int, error) {
	target := c.origin + second*MicrosPerSecond
	for c.idx < len(c.stream) && c.stream[c.idx].Timestamp < target {
		c.idx++
	}
	if c.idx == len(c.stream) {
		return 0, &IndexOverrunError{Second: second, Len: len(c.stream)}
	}
	return c.idx, nil
}

// Pos returns the cursor position: the last boundary found, or the index
// where the last failed search ended.
func (c *BoundaryCursor) Pos() int { return c.idx }

// SecondBoundaryIndex returns the smallest index whose timestamp is at least
// second seconds after the start of stream.
func SecondBoundaryIndex(stream []PolarityEvent, second int64) (int, error) {
	c, err := NewBoundaryCursor(stream)
	if err != nil {
		return 0, err
	}
	return c.Next(second)
}

// EventsBefore returns the prefix of stream recorded strictly before second
// seconds after the stream start. The whole stream is returned when it ends
// before that point.
func EventsBefore(stream []PolarityEvent, second int64) []PolarityEvent {
	idx, err := SecondBoundaryIndex(stream, second)
	if err != nil {
		return stream
	}
	return stream[:idx]
}
