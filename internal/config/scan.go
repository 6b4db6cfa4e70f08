package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical scan defaults file.
const DefaultConfigPath = "config/scan.defaults.json"

// Built-in fallbacks used by the Get* accessors when a field is unset.
const (
	DefaultNoiseClass        = 7
	DefaultNoiseLevel        = 30.0
	DefaultChunkSize         = 100000
	DefaultPlotWidthIn       = 10.0
	DefaultPlotHeightIn      = 4.0
	DefaultEChartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"
)

// ScanConfig holds the options that steer a waveform scan and the
// exporters that consume its result. Fields are pointers so a partial
// JSON file leaves the rest at their defaults.
type ScanConfig struct {
	// Record filtering
	ExcludeNoise *bool `json:"exclude_noise,omitempty"`
	NoiseClass   *int  `json:"noise_class,omitempty"`

	// Waveform statistics
	NoiseLevel *float64 `json:"noise_level,omitempty"`

	// Chunked scanning and ordering
	ChunkSize     *int  `json:"chunk_size,omitempty"` // point records per chunk
	SortByOriginY *bool `json:"sort_by_origin_y,omitempty"`

	// Export
	PlotWidthIn       *float64 `json:"plot_width_in,omitempty"`
	PlotHeightIn      *float64 `json:"plot_height_in,omitempty"`
	EChartsAssetsHost *string  `json:"echarts_assets_host,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyScanConfig returns a ScanConfig with all fields set to nil.
func EmptyScanConfig() *ScanConfig {
	return &ScanConfig{}
}

// DefaultScanConfig returns a ScanConfig with every field populated.
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{
		ExcludeNoise:      ptrBool(false),
		NoiseClass:        ptrInt(DefaultNoiseClass),
		NoiseLevel:        ptrFloat64(DefaultNoiseLevel),
		ChunkSize:         ptrInt(DefaultChunkSize),
		SortByOriginY:     ptrBool(false),
		PlotWidthIn:       ptrFloat64(DefaultPlotWidthIn),
		PlotHeightIn:      ptrFloat64(DefaultPlotHeightIn),
		EChartsAssetsHost: ptrString(DefaultEChartsAssetsHost),
	}
}

// LoadScanConfig loads a ScanConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults.
func LoadScanConfig(path string) (*ScanConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyScanConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ScanConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/scan/
		"../../../../" + DefaultConfigPath, // from internal/lidar/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadScanConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ScanConfig) Validate() error {
	if c.NoiseClass != nil {
		if *c.NoiseClass < 0 || *c.NoiseClass > 255 {
			return fmt.Errorf("noise_class must be between 0 and 255, got %d", *c.NoiseClass)
		}
	}

	if c.NoiseLevel != nil && *c.NoiseLevel < 0 {
		return fmt.Errorf("noise_level must be non-negative, got %f", *c.NoiseLevel)
	}

	if c.ChunkSize != nil && *c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", *c.ChunkSize)
	}

	if c.PlotWidthIn != nil && *c.PlotWidthIn <= 0 {
		return fmt.Errorf("plot_width_in must be positive, got %f", *c.PlotWidthIn)
	}
	if c.PlotHeightIn != nil && *c.PlotHeightIn <= 0 {
		return fmt.Errorf("plot_height_in must be positive, got %f", *c.PlotHeightIn)
	}

	return nil
}

// GetExcludeNoise returns the exclude_noise value or the default.
func (c *ScanConfig) GetExcludeNoise() bool {
	if c.ExcludeNoise == nil {
		return false // default
	}
	return *c.ExcludeNoise
}

// GetNoiseClass returns the noise_class value or the default.
func (c *ScanConfig) GetNoiseClass() uint8 {
	if c.NoiseClass == nil {
		return DefaultNoiseClass
	}
	return uint8(*c.NoiseClass)
}

// GetNoiseLevel returns the noise_level value or the default.
func (c *ScanConfig) GetNoiseLevel() float64 {
	if c.NoiseLevel == nil {
		return DefaultNoiseLevel
	}
	return *c.NoiseLevel
}

// GetChunkSize returns the chunk_size value or the default.
func (c *ScanConfig) GetChunkSize() int {
	if c.ChunkSize == nil {
		return DefaultChunkSize
	}
	return *c.ChunkSize
}

// GetSortByOriginY returns the sort_by_origin_y value or the default.
func (c *ScanConfig) GetSortByOriginY() bool {
	if c.SortByOriginY == nil {
		return false // default
	}
	return *c.SortByOriginY
}

// GetPlotWidthIn returns the plot_width_in value or the default.
func (c *ScanConfig) GetPlotWidthIn() float64 {
	if c.PlotWidthIn == nil {
		return DefaultPlotWidthIn
	}
	return *c.PlotWidthIn
}

// GetPlotHeightIn returns the plot_height_in value or the default.
func (c *ScanConfig) GetPlotHeightIn() float64 {
	if c.PlotHeightIn == nil {
		return DefaultPlotHeightIn
	}
	return *c.PlotHeightIn
}

// GetEChartsAssetsHost returns the echarts_assets_host value or the default.
func (c *ScanConfig) GetEChartsAssetsHost() string {
	if c.EChartsAssetsHost == nil || *c.EChartsAssetsHost == "" {
		return DefaultEChartsAssetsHost
	}
	return *c.EChartsAssetsHost
}
