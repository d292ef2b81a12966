// Package config provides configuration loading and management for odtrecon.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"odtrecon/pkg/phantom"
	"odtrecon/pkg/reconstruction"
	"odtrecon/pkg/transform"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Physical parameters of the measurement
	Physics struct {
		// Wavelength is the vacuum wavelength in detector pixels
		Wavelength float64 `yaml:"wavelength"`

		// MediumIndex is the refractive index of the surrounding medium
		MediumIndex float64 `yaml:"mediumIndex"`

		// DetectorDistance is the distance from the rotation centre to the
		// detector plane in pixels
		DetectorDistance float64 `yaml:"detectorDistance"`
	} `yaml:"physics"`

	// Backpropagation parameters
	Reconstruction struct {
		// WeightAngles weights projections by their angular spacing
		WeightAngles bool `yaml:"weightAngles"`

		// OnlyReal skips the imaginary part of the object function
		OnlyReal bool `yaml:"onlyReal"`

		// Padding enables padding of the y and x axes, in that order
		Padding []bool `yaml:"padding,flow"`

		// PadFactor grows the padded transform size
		PadFactor float64 `yaml:"padFactor"`

		// PadValue is the value padding ramps to; null replicates edges
		PadValue *float64 `yaml:"padValue"`

		// InterpolationOrder is the spline order of the rotation (0-5)
		InterpolationOrder int `yaml:"interpolationOrder"`

		// Precision is float32 or float64
		Precision string `yaml:"precision"`

		// NumCores caps the worker count; 0 uses every core
		NumCores int `yaml:"numCores"`

		// Executor is auto, parallel or sequential
		Executor string `yaml:"executor"`

		// Buffering is double or single
		Buffering string `yaml:"buffering"`
	} `yaml:"reconstruction"`

	// Synthetic scatterer used when no measured sinogram is given
	Phantom struct {
		// Height and Width of the detector in pixels
		Height int `yaml:"height"`
		Width  int `yaml:"width"`

		// Angles is the number of projections over a full turn
		Angles int `yaml:"angles"`

		// Offset of the scatterer from the rotation centre (z, y, x) in voxels
		Offset []float64 `yaml:"offset,flow"`

		// Sigma is the Gaussian width in voxels
		Sigma float64 `yaml:"sigma"`

		// Amplitude is the peak object function value
		Amplitude float64 `yaml:"amplitude"`
	} `yaml:"phantom"`

	// Output parameters
	Output struct {
		// SaveSlices writes slice images of the reconstruction
		SaveSlices bool `yaml:"saveSlices"`

		// SlicesDir is the directory slice images are written to
		SlicesDir string `yaml:"slicesDir"`

		// Component is real, imag or magnitude
		Component string `yaml:"component"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	opts := reconstruction.DefaultOptions()

	cfg.Physics.Wavelength = 5
	cfg.Physics.MediumIndex = 1.333
	cfg.Physics.DetectorDistance = 20

	cfg.Reconstruction.WeightAngles = opts.WeightAngles
	cfg.Reconstruction.OnlyReal = opts.OnlyReal
	cfg.Reconstruction.Padding = []bool{opts.Padding.Y, opts.Padding.X}
	cfg.Reconstruction.PadFactor = opts.PadFactor
	cfg.Reconstruction.InterpolationOrder = opts.InterpolationOrder
	cfg.Reconstruction.Precision = opts.Precision.String()
	cfg.Reconstruction.Executor = opts.Executor.String()
	cfg.Reconstruction.Buffering = opts.Buffering.String()

	cfg.Phantom.Height = 32
	cfg.Phantom.Width = 32
	cfg.Phantom.Angles = 32
	cfg.Phantom.Offset = []float64{3, -2, 4}
	cfg.Phantom.Sigma = 1.5
	cfg.Phantom.Amplitude = 0.01

	cfg.Output.SlicesDir = "reconstructed_slices"
	cfg.Output.Component = "real"
	cfg.Output.Verbose = true

	return cfg
}

// Options converts the reconstruction section into backpropagation options.
func (c *Config) Options() (reconstruction.Options, error) {
	r := c.Reconstruction
	opts := reconstruction.DefaultOptions()

	if len(r.Padding) != 2 {
		return opts, &reconstruction.ValidationError{
			Field:  "padding",
			Reason: fmt.Sprintf("expected two values (y, x), got %d", len(r.Padding)),
		}
	}
	precision, err := transform.ParsePrecision(r.Precision)
	if err != nil {
		return opts, &reconstruction.ValidationError{Field: "precision", Reason: err.Error()}
	}
	executor, err := reconstruction.ParseExecutorKind(r.Executor)
	if err != nil {
		return opts, &reconstruction.ValidationError{Field: "executor", Reason: err.Error()}
	}
	buffering, err := reconstruction.ParseBuffering(r.Buffering)
	if err != nil {
		return opts, &reconstruction.ValidationError{Field: "buffering", Reason: err.Error()}
	}

	opts.WeightAngles = r.WeightAngles
	opts.OnlyReal = r.OnlyReal
	opts.Padding = reconstruction.Padding{Y: r.Padding[0], X: r.Padding[1]}
	opts.PadFactor = r.PadFactor
	opts.PadValue = r.PadValue
	opts.InterpolationOrder = r.InterpolationOrder
	opts.Precision = precision
	opts.Workers = r.NumCores
	opts.Executor = executor
	opts.Buffering = buffering
	return opts, nil
}

// Geometry returns the phantom detector geometry.
func (c *Config) Geometry() phantom.Geometry {
	return phantom.Geometry{
		Height:      c.Phantom.Height,
		Width:       c.Phantom.Width,
		Wavelength:  c.Physics.Wavelength,
		MediumIndex: c.Physics.MediumIndex,
		Distance:    c.Physics.DetectorDistance,
	}
}

// Scatterer returns the phantom scatterer.
func (c *Config) Scatterer() (phantom.Scatterer, error) {
	p := c.Phantom
	if len(p.Offset) != 3 {
		return phantom.Scatterer{}, &reconstruction.ValidationError{
			Field:  "offset",
			Reason: fmt.Sprintf("expected three values (z, y, x), got %d", len(p.Offset)),
		}
	}
	return phantom.Scatterer{
		Z:         p.Offset[0],
		Y:         p.Offset[1],
		X:         p.Offset[2],
		Sigma:     p.Sigma,
		Amplitude: p.Amplitude,
	}, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
