// Package testutil provides shared test fixtures for event streams.
//
// This package centralises the stream builders used across the tensor,
// wire and session tests so each test states only the timestamps and
// coordinates it cares about.
package testutil

import (
	"math/rand"
	"testing"

	"github.com/banshee-data/dvstream/internal/dvs"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// EventsAt returns one valid "on" event per timestamp, all at (x, y).
func EventsAt(x, y uint16, timestamps ...int64) []dvs.PolarityEvent {
	out := make([]dvs.PolarityEvent, len(timestamps))
	for i, ts := range timestamps {
		out[i] = dvs.PolarityEvent{Timestamp: ts, X: x, Y: y, Polarity: true, Valid: true}
	}
	return out
}

// EvenlySpaced returns n valid events starting at start and spaced by step
// microseconds. Coordinates walk across a width x height sensor and
// polarity alternates.
func EvenlySpaced(n int, start, step int64, width, height uint16) []dvs.PolarityEvent {
	out := make([]dvs.PolarityEvent, n)
	for i := range out {
		out[i] = dvs.PolarityEvent{
			Timestamp: start + int64(i)*step,
			X:         uint16(i % int(width)),
			Y:         uint16((i / int(width)) % int(height)),
			Polarity:  i%2 == 0,
			Valid:     true,
		}
	}
	return out
}

// RandomStream returns n events with non-decreasing timestamps drawn from a
// seeded source. Gaps are uniform in [0, maxGap] microseconds and roughly
// one event in invalidEvery is marked invalid (0 disables invalid events).
func RandomStream(seed int64, n int, maxGap int64, width, height uint16, invalidEvery int) []dvs.PolarityEvent {
	rng := rand.New(rand.NewSource(seed))
	out := make([]dvs.PolarityEvent, n)
	ts := rng.Int63n(1_000_000)
	for i := range out {
		if maxGap > 0 {
			ts += rng.Int63n(maxGap + 1)
		}
		out[i] = dvs.PolarityEvent{
			Timestamp: ts,
			X:         uint16(rng.Intn(int(width))),
			Y:         uint16(rng.Intn(int(height))),
			Polarity:  rng.Intn(2) == 1,
			Valid:     invalidEvery == 0 || rng.Intn(invalidEvery) != 0,
		}
	}
	return out
}
