package scan

import (
	"github.com/banshee-data/waveform.report/internal/config"
	"github.com/banshee-data/waveform.report/internal/lidar/pulse"
)

// NoiseClassification is the LAS class code for low noise points.
const NoiseClassification = 7

// Options steer record filtering and result post-processing.
type Options struct {
	// ExcludeNoise drops records of NoiseClass before any other filter.
	ExcludeNoise bool
	NoiseClass   uint8
	// NoiseLevel is applied to every manager a scan produces.
	NoiseLevel float64
	// SortByOriginY reorders each result by descending origin Y.
	SortByOriginY bool
}

// DefaultOptions keeps noise points and leaves pulses in file order.
func DefaultOptions() Options {
	return Options{
		NoiseClass: NoiseClassification,
		NoiseLevel: pulse.DefaultNoiseLevel,
	}
}

// OptionsFromConfig converts a scan configuration into Options.
func OptionsFromConfig(cfg *config.ScanConfig) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		ExcludeNoise:  cfg.GetExcludeNoise(),
		NoiseClass:    cfg.GetNoiseClass(),
		NoiseLevel:    cfg.GetNoiseLevel(),
		SortByOriginY: cfg.GetSortByOriginY(),
	}
}
