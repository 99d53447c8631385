// Package report renders offline conversions: frame heatmaps as PNG with
// gonum/plot and per-second activity charts as HTML with go-echarts.
package report

import (
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dvstream/internal/tensor"
)

const (
	heatmapWidth  = 8 * vg.Inch
	heatmapHeight = 6 * vg.Inch
	paletteSize   = 64
)

// frameGrid adapts an x-by-y frame to plotter.GridXYZ with x across
// columns and y up rows.
type frameGrid struct {
	m *mat.Dense
}

func (g frameGrid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return rows, cols
}

func (g frameGrid) Z(c, r int) float64 { return g.m.At(c, r) }
func (g frameGrid) X(c int) float64    { return float64(c) }
func (g frameGrid) Y(r int) float64    { return float64(r) }

// FramePlot builds a heatmap of frame using a diverging palette centred on
// zero, so "on" and "off" activity get opposite hues.
func FramePlot(frame tensor.Frame) (*plot.Plot, error) {
	if frame.Data == nil {
		return nil, fmt.Errorf("frame %d has no data", frame.Second)
	}

	limit := 0.0
	for _, v := range frame.Data.RawMatrix().Data {
		limit = math.Max(limit, math.Abs(v))
	}
	if limit == 0 {
		limit = 1
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-limit)
	cmap.SetMax(limit)

	hm := plotter.NewHeatMap(frameGrid{frame.Data}, cmap.Palette(paletteSize))
	hm.Min = -limit
	hm.Max = limit

	p := plot.New()
	p.Title.Text = fmt.Sprintf("second %d (%d events)", frame.Second, frame.Events)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(hm)
	return p, nil
}

// WriteFrameHeatmap renders frame as a PNG to w.
func WriteFrameHeatmap(w io.Writer, frame tensor.Frame) error {
	p, err := FramePlot(frame)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(heatmapWidth, heatmapHeight, "png")
	if err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveFrameHeatmap writes the PNG heatmap of frame to path.
func SaveFrameHeatmap(path string, frame tensor.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFrameHeatmap(f, frame); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
