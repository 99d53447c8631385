package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dvstream/internal/tensor"
)

// FrameSummary is one bar of the activity chart.
type FrameSummary struct {
	Second int64
	Events int
	// Net is the sum of every cell of the frame, the overall balance of on
	// and off events.
	Net float64
}

// Summarize reduces frames to their chart values.
func Summarize(frames []tensor.Frame) []FrameSummary {
	out := make([]FrameSummary, len(frames))
	for i, f := range frames {
		out[i] = FrameSummary{Second: f.Second, Events: f.Events}
		if f.Data != nil {
			out[i].Net = mat.Sum(f.Data)
		}
	}
	return out
}

// WriteActivityChart renders events per second and net polarity per second
// as an HTML page.
func WriteActivityChart(w io.Writer, title string, frames []tensor.Frame) error {
	summary := Summarize(frames)
	seconds := make([]string, len(summary))
	events := make([]opts.BarData, len(summary))
	net := make([]opts.BarData, len(summary))
	for i, s := range summary {
		seconds[i] = strconv.FormatInt(s.Second, 10)
		events[i] = opts.BarData{Value: s.Events}
		net[i] = opts.BarData{Value: s.Net}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d seconds", len(summary))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "second", NameLocation: "middle", NameGap: 25}),
	)
	bar.SetXAxis(seconds).
		AddSeries("events", events).
		AddSeries("net polarity", net)

	page := components.NewPage()
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// SaveActivityChart writes the activity chart to path.
func SaveActivityChart(path, title string, frames []tensor.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteActivityChart(f, title, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
