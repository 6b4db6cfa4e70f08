// Package export writes reconstructed pulses out for inspection: one ASCII
// table per waveform, PNG plots and an interactive HTML chart.
package export

import (
	"bufio"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/waveform.report/internal/fsutil"
	"github.com/banshee-data/waveform.report/internal/lidar/geom"
	"github.com/banshee-data/waveform.report/internal/lidar/pulse"
	"github.com/banshee-data/waveform.report/internal/monitoring"
)

// BaseName identifies a waveform by the GPS time and return number of the
// record it was built from: waveform_<seconds>_<microseconds>_<return>.
func BaseName(p *pulse.Pulse) string {
	d := p.FirstReturn()
	whole, frac := math.Modf(d.GPSTime)
	return fmt.Sprintf("waveform_%06d_%06d_%d", int64(whole), int64(math.Round(frac*1e6)), d.ReturnNumber)
}

// Filename is BaseName with the .txt extension used by WriteWaveform.
func Filename(p *pulse.Pulse) string {
	return BaseName(p) + ".txt"
}

// WriteWaveform writes p as a text file in dir and returns its path. The
// file opens with a key/value preamble describing the record and the
// digitiser, followed by an "Intensity X Y Z" row per sample.
func WriteWaveform(fsys fsutil.FileSystem, dir string, p *pulse.Pulse) (string, error) {
	if len(p.Points) == 0 {
		return "", fmt.Errorf("pulse at %d has no discrete return", p.Key)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, Filename(p))
	f, err := fsys.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	writeWaveform(w, p)
	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	if p.Step.Z > 0 {
		monitoring.Logf("[export] %s: Z step is positive; the direction vector may be stored with the opposite sign", path)
	}
	return path, nil
}

// WriteAll writes every pulse of m into dir. It stops at the first error
// and reports how many files were written before it.
func WriteAll(fsys fsutil.FileSystem, dir string, m *pulse.Manager) (int, error) {
	n := 0
	for _, p := range m.Pulses() {
		if _, err := WriteWaveform(fsys, dir, p); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func writeWaveform(w *bufio.Writer, p *pulse.Pulse) {
	d := p.FirstReturn()
	spacingNs := p.SpacingPs / 1000

	field := func(label string, value string) {
		fmt.Fprintf(w, "%-37s %s\n", label, value)
	}
	field("Point", fmt.Sprintf("%s %s %s", num(d.Position.X), num(d.Position.Y), num(d.Position.Z)))
	field("Return Number", strconv.Itoa(int(d.ReturnNumber)))
	field("Number of returns for this pulse", strconv.Itoa(int(p.ReturnCount)))
	field("Time", num(d.GPSTime))
	field("Scan Angle", strconv.Itoa(int(p.ScanAngle)))
	field("Classification", strconv.Itoa(int(p.Classification)))
	field("Temporal Sample Spacing", num(spacingNs))
	field("AGC gain", strconv.Itoa(int(p.AGCGain)))
	field("Digitiser Gain", num(p.DigitizerGain))
	field("Digitiser Offset", num(p.DigitizerOffset))
	field("No. of Samples", strconv.Itoa(p.SampleCount()))
	field("Sample Length", num(p.SampleLength()))
	field("Return Point Location", num(d.OffsetNs()))
	field("Point in Waveform", num(d.RangeInWaveform()))
	field("X Offset", num(p.Step.X))
	field("Y Offset", num(p.Step.Y))
	field("Z Offset", num(p.Step.Z))
	field("Origin", fmt.Sprintf("%.4f %.4f %.4f", p.Origin.X, p.Origin.Y, p.Origin.Z))

	fmt.Fprintln(w, "Intensity  X  Y  Z")
	for i, s := range p.Samples {
		pos := geom.Along(p.Origin, p.Step, float64(i))
		fmt.Fprintf(w, "%d %.4f %.4f %.4f\n", s, pos.X, pos.Y, pos.Z)
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
