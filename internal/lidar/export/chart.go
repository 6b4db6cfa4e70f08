package export

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/waveform.report/internal/fsutil"
	"github.com/banshee-data/waveform.report/internal/lidar/pulse"
)

// ChartOptions control the HTML waveform page.
type ChartOptions struct {
	AssetsHost string
	MaxPulses  int // series drawn on the waveform chart; 0 means 20
	Title      string
}

const defaultChartPulses = 20

var errNoPulses = errors.New("no pulses to chart")

// RenderWaveformChart writes an HTML page with two charts: the samples of
// the first MaxPulses pulses against sample number, and the plan-view
// origin of every pulse.
func RenderWaveformChart(w io.Writer, pulses []*pulse.Pulse, o ChartOptions) error {
	if len(pulses) == 0 {
		return errNoPulses
	}
	limit := o.MaxPulses
	if limit <= 0 {
		limit = defaultChartPulses
	}
	title := o.Title
	if title == "" {
		title = "Full-waveform pulses"
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AssetsHost = o.AssetsHost
	page.AddCharts(samplesChart(pulses[:min(limit, len(pulses))], title, o.AssetsHost), originChart(pulses, o.AssetsHost))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render waveform chart: %w", err)
	}
	return nil
}

func samplesChart(pulses []*pulse.Pulse, title, assetsHost string) *charts.Line {
	longest := 0
	for _, p := range pulses {
		longest = max(longest, p.SampleCount())
	}
	x := make([]int, longest)
	for i := range x {
		x[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("pulses=%d samples<=%d", len(pulses), longest)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sample number", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Intensity", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x)
	for _, p := range pulses {
		data := make([]opts.LineData, len(p.Samples))
		for i, s := range p.Samples {
			data[i] = opts.LineData{Value: int(s)}
		}
		line.AddSeries(BaseName(p), data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

func originChart(pulses []*pulse.Pulse, assetsHost string) *charts.Scatter {
	pts := make([]opts.ScatterData, len(pulses))
	minX, maxX := pulses[0].Origin.X, pulses[0].Origin.X
	minY, maxY := pulses[0].Origin.Y, pulses[0].Origin.Y
	for i, p := range pulses {
		o := p.Origin
		pts[i] = opts.ScatterData{Value: []interface{}{o.X, o.Y, p.SampleCount()}, Name: BaseName(p)}
		minX, maxX = min(minX, o.X), max(maxX, o.X)
		minY, maxY = min(minY, o.Y), max(maxY, o.Y)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "900px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Pulse origins", Subtitle: fmt.Sprintf("count=%d", len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX - 1, Max: maxX + 1, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY - 1, Max: maxY + 1, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("origins", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#3e4989"}))
	return scatter
}

// WriteWaveformChart renders the chart page to path through fsys.
func WriteWaveformChart(fsys fsutil.FileSystem, path string, pulses []*pulse.Pulse, o ChartOptions) error {
	if len(pulses) == 0 {
		return errNoPulses
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := RenderWaveformChart(f, pulses, o); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
