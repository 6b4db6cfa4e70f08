package export

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/waveform.report/internal/config"
	"github.com/banshee-data/waveform.report/internal/fsutil"
	"github.com/banshee-data/waveform.report/internal/lidar/pulse"
)

// PlotSize is the page size of a saved waveform plot.
type PlotSize struct {
	Width, Height vg.Length
}

// PlotSizeFromConfig converts the configured size in inches. A nil config
// yields the default size.
func PlotSizeFromConfig(cfg *config.ScanConfig) PlotSize {
	if cfg == nil {
		cfg = config.EmptyScanConfig()
	}
	return PlotSize{
		Width:  vg.Length(cfg.GetPlotWidthIn()) * vg.Inch,
		Height: vg.Length(cfg.GetPlotHeightIn()) * vg.Inch,
	}
}

var (
	waveformColor = color.RGBA{B: 200, A: 255}
	discreteColor = color.RGBA{R: 220, A: 255}
)

// NewWaveformPlot draws the samples of p as a line against sample number
// and each attached discrete return as a point at its fractional sample
// index with its intensity.
func NewWaveformPlot(p *pulse.Pulse) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = BaseName(p)
	pl.X.Label.Text = "Sample number"
	pl.Y.Label.Text = "Intensity"

	samples := make(plotter.XYs, len(p.Samples))
	var peak float64
	for i, s := range p.Samples {
		samples[i] = plotter.XY{X: float64(i), Y: float64(s)}
		peak = max(peak, float64(s))
	}
	line, err := plotter.NewLine(samples)
	if err != nil {
		return nil, fmt.Errorf("waveform line: %w", err)
	}
	line.Color = waveformColor
	line.Width = vg.Points(1)
	pl.Add(line)
	pl.Legend.Add("Waveform", line)

	returns := make(plotter.XYs, len(p.Points))
	for i, d := range p.Points {
		returns[i] = plotter.XY{X: p.SampleIndexOf(d), Y: float64(d.Intensity)}
		peak = max(peak, float64(d.Intensity))
	}
	scatter, err := plotter.NewScatter(returns)
	if err != nil {
		return nil, fmt.Errorf("discrete returns: %w", err)
	}
	scatter.GlyphStyle.Color = discreteColor
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)
	pl.Add(scatter)
	pl.Legend.Add("Discrete", scatter)

	pl.Y.Min = 0
	pl.Y.Max = peak + 5
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10
	return pl, nil
}

// PlotWaveform renders p and writes it into dir. The format follows ext
// ("png", "svg", "pdf"). It returns the written path.
func PlotWaveform(fsys fsutil.FileSystem, dir string, p *pulse.Pulse, size PlotSize, ext string) (string, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "png"
	}
	if len(p.Points) == 0 {
		return "", fmt.Errorf("pulse at %d has no discrete return", p.Key)
	}
	pl, err := NewWaveformPlot(p)
	if err != nil {
		return "", err
	}
	wt, err := pl.WriterTo(size.Width, size.Height, ext)
	if err != nil {
		return "", fmt.Errorf("render plot: %w", err)
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, BaseName(p)+"."+ext)
	f, err := fsys.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("save plot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
