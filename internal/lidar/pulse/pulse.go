// Package pulse reconstructs full-waveform laser pulses from decoded point
// records and associates discrete returns with the pulse whose waveform
// they share.
package pulse

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waveform.report/internal/lidar/geom"
	"github.com/banshee-data/waveform.report/internal/lidar/las"
)

// SpeedOfLight in metres per nanosecond.
const SpeedOfLight = 0.299792458

// DiscretePoint is a single return. Returns that share a waveform carry
// the waveform key used to find their pulse.
type DiscretePoint struct {
	Position         r3.Vec
	Intensity        uint16
	Classification   uint8
	ReturnNumber     uint8
	GPSTime          float64
	ReturnLocationPs float64
	WaveformKey      uint64
	HasWaveform      bool
}

// NewDiscretePoint builds a discrete point in real-world coordinates.
// key is recorded only when p references a waveform.
func NewDiscretePoint(h *las.Header, p las.PointRecord, key uint64) DiscretePoint {
	d := DiscretePoint{
		Position:         h.Scaled(p.X, p.Y, p.Z),
		Intensity:        p.Intensity,
		Classification:   p.Classification,
		ReturnNumber:     p.ReturnNumber,
		GPSTime:          p.GPSTime,
		ReturnLocationPs: float64(p.ReturnLocationPs),
	}
	if p.HasWaveform() {
		d.WaveformKey = key
		d.HasWaveform = true
	}
	return d
}

// OffsetNs is the time from the first waveform sample to this return.
func (d DiscretePoint) OffsetNs() float64 {
	return d.ReturnLocationPs / 1000
}

// RangeInWaveform is the one-way distance in metres from the first
// waveform sample to this return.
func (d DiscretePoint) RangeInWaveform() float64 {
	return d.OffsetNs() * SpeedOfLight / 2
}

// Pulse is one laser shot: its digitised waveform placed in space plus
// every discrete return that shares it.
type Pulse struct {
	Key             uint64 // absolute file offset of the waveform packet
	Origin          r3.Vec // position of sample 0
	Step            r3.Vec // displacement between adjacent samples
	Samples         []byte
	GPSTime         float64
	ScanAngle       int8
	Classification  uint8
	ReturnCount     uint8
	AGCGain         uint8
	SpacingPs       float64
	DigitizerGain   float64
	DigitizerOffset float64
	Points          []DiscretePoint
}

// Reconstruct builds a pulse from a first-return record and its waveform
// packet. The direction derivative is in distance per picosecond, so the
// step uses the raw picosecond spacing. samples is copied.
func Reconstruct(h *las.Header, wd las.WaveformDescriptor, p las.PointRecord, samples []byte, key uint64) *Pulse {
	scaled := h.Scaled(p.X, p.Y, p.Z)
	dir := p.Direction()
	spacing := float64(wd.SpacingPs)

	pl := &Pulse{
		Key:             key,
		Origin:          r3.Sub(scaled, r3.Scale(float64(p.ReturnLocationPs), dir)),
		Step:            r3.Scale(spacing, dir),
		Samples:         append([]byte(nil), samples...),
		GPSTime:         p.GPSTime,
		ScanAngle:       p.ScanAngle,
		Classification:  p.Classification,
		ReturnCount:     p.ReturnCount,
		AGCGain:         p.Gain,
		SpacingPs:       spacing,
		DigitizerGain:   wd.DigitizerGain,
		DigitizerOffset: wd.DigitizerOffset,
	}
	pl.Points = []DiscretePoint{NewDiscretePoint(h, p, key)}
	return pl
}

// SampleCount returns the number of waveform samples.
func (p *Pulse) SampleCount() int { return len(p.Samples) }

// SamplePosition returns the position of sample i. ok is false, with a
// zero vector, when i is out of range.
func (p *Pulse) SamplePosition(i int) (pos r3.Vec, ok bool) {
	if i < 0 || i >= len(p.Samples) {
		return r3.Vec{}, false
	}
	return geom.Along(p.Origin, p.Step, float64(i)), true
}

// Positions returns the position of every sample.
func (p *Pulse) Positions() []r3.Vec {
	out := make([]r3.Vec, len(p.Samples))
	for i := range out {
		out[i] = geom.Along(p.Origin, p.Step, float64(i))
	}
	return out
}

// End returns origin + step*sampleCount, the far edge of the waveform.
func (p *Pulse) End() r3.Vec {
	return geom.Along(p.Origin, p.Step, float64(len(p.Samples)))
}

// Calibrated converts sample i through the digitiser gain and offset.
func (p *Pulse) Calibrated(i int) (float64, bool) {
	if i < 0 || i >= len(p.Samples) {
		return 0, false
	}
	return p.DigitizerOffset + p.DigitizerGain*float64(p.Samples[i]), true
}

// SampleIndexOf returns the fractional sample index of a discrete return.
func (p *Pulse) SampleIndexOf(d DiscretePoint) float64 {
	if p.SpacingPs == 0 {
		return 0
	}
	return d.ReturnLocationPs / p.SpacingPs
}

// FirstReturn returns the discrete point the pulse was created from.
func (p *Pulse) FirstReturn() DiscretePoint { return p.Points[0] }

// ReturnLocationsNs lists each attached return's offset into the waveform.
func (p *Pulse) ReturnLocationsNs() []float64 {
	out := make([]float64, len(p.Points))
	for i, d := range p.Points {
		out[i] = d.OffsetNs()
	}
	return out
}

// RangesInWaveform lists each attached return's range from sample 0 in metres.
func (p *Pulse) RangesInWaveform() []float64 {
	out := make([]float64, len(p.Points))
	for i, d := range p.Points {
		out[i] = d.RangeInWaveform()
	}
	return out
}

// SampleLength is the distance light travels out and back in one sample period.
func (p *Pulse) SampleLength() float64 {
	return p.SpacingPs / 1000 * SpeedOfLight / 2
}
