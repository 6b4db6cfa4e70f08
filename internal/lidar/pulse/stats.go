package pulse

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WaveformStats summarises the raw samples of one pulse.
type WaveformStats struct {
	Samples    int
	Peak       float64
	PeakIndex  int
	Mean       float64
	StdDev     float64
	Energy     float64 // sum of samples
	AboveNoise int     // samples strictly above the noise level
	NoiseLevel float64
}

// PeakRange is the range in metres from sample 0 to the peak sample.
func (s WaveformStats) PeakRange(p *Pulse) float64 {
	return float64(s.PeakIndex) * p.SampleLength()
}

// Summarize computes sample statistics for p. A pulse without samples
// returns zero values.
func Summarize(p *Pulse, noiseLevel float64) WaveformStats {
	s := WaveformStats{Samples: len(p.Samples), NoiseLevel: noiseLevel}
	if len(p.Samples) == 0 {
		return s
	}
	x := make([]float64, len(p.Samples))
	for i, v := range p.Samples {
		x[i] = float64(v)
		if x[i] > noiseLevel {
			s.AboveNoise++
		}
	}
	s.PeakIndex = floats.MaxIdx(x)
	s.Peak = x[s.PeakIndex]
	s.Energy = floats.Sum(x)
	if len(x) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	} else {
		s.Mean = x[0]
	}
	return s
}
