package report

import (
	"bytes"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dvstream/internal/testutil"
	"github.com/banshee-data/dvstream/internal/tensor"
)

func testFrames(t *testing.T) []tensor.Frame {
	t.Helper()
	frames, err := tensor.FramesFromEvents(testutil.EvenlySpaced(40, 0, 60_000, 8, 6))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	return frames
}

func TestFrameGrid(t *testing.T) {
	g := frameGrid{mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})}
	c, r := g.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, 4.0, g.Z(1, 1))
	assert.Equal(t, 2.0, g.X(2))
	assert.Equal(t, 1.0, g.Y(1))
}

func TestWriteFrameHeatmap(t *testing.T) {
	frames := testFrames(t)

	var buf bytes.Buffer
	require.NoError(t, WriteFrameHeatmap(&buf, frames[0]))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	// An all-zero frame still renders.
	empty := tensor.Frame{Data: mat.NewDense(4, 4, nil)}
	buf.Reset()
	require.NoError(t, WriteFrameHeatmap(&buf, empty))

	assert.Error(t, WriteFrameHeatmap(&buf, tensor.Frame{}))

	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, SaveFrameHeatmap(path, frames[1]))
}

func TestSummarize(t *testing.T) {
	frames := testFrames(t)
	summary := Summarize(frames)
	require.Len(t, summary, 3)

	total := 0
	for i, s := range summary {
		assert.Equal(t, int64(i), s.Second)
		assert.Equal(t, frames[i].Events, s.Events)
		total += s.Events
	}
	assert.Equal(t, 40, total)
	// Polarity alternates, so 17 events in the first second net to +1.
	assert.Equal(t, 17, summary[0].Events)
	assert.Equal(t, 1.0, summary[0].Net)
}

func TestWriteActivityChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteActivityChart(&buf, "events per second", testFrames(t)))

	html := buf.String()
	assert.True(t, strings.Contains(html, "events per second"))
	assert.Contains(t, html, "net polarity")

	require.NoError(t, SaveActivityChart(filepath.Join(t.TempDir(), "chart.html"), "rate", testFrames(t)))
}
