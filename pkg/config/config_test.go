package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odtrecon/pkg/reconstruction"
)

func TestDefaultConfigOptions(t *testing.T) {
	opts, err := DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, reconstruction.DefaultOptions(), opts)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Physics.Wavelength = 7.5
	cfg.Reconstruction.Padding = []bool{false, true}
	pv := 0.0
	cfg.Reconstruction.PadValue = &pv
	cfg.Reconstruction.Precision = "float32"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	opts, err := loaded.Options()
	require.NoError(t, err)
	assert.Equal(t, reconstruction.Padding{X: true}, opts.Padding)
	require.NotNil(t, opts.PadValue)
	assert.Zero(t, *opts.PadValue)
	assert.Equal(t, reconstruction.Float32, opts.Precision)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "padding: [true, true]")
	assert.Contains(t, string(data), "mediumIndex: 1.333")
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlText := `
physics:
  wavelength: 4
reconstruction:
  onlyReal: true
  executor: sequential
  buffering: single
`
	require.NoError(t, os.WriteFile(path, []byte(yamlText), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.Physics.Wavelength)
	assert.Equal(t, 1.333, cfg.Physics.MediumIndex)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.True(t, opts.OnlyReal)
	assert.Equal(t, reconstruction.ExecutorSequential, opts.Executor)
	assert.Equal(t, reconstruction.SingleBuffer, opts.Buffering)
}

func TestLoadConfigPaddingOrder(t *testing.T) {
	tests := []struct {
		yaml string
		want reconstruction.Padding
	}{
		{"[true, false]", reconstruction.Padding{Y: true}},
		{"[false, true]", reconstruction.Padding{X: true}},
		{"[false, false]", reconstruction.Padding{}},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "config.yaml")
		yamlText := "reconstruction:\n  padding: " + tt.yaml + "\n"
		require.NoError(t, os.WriteFile(path, []byte(yamlText), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, tt.want, opts.Padding, "padding %s", tt.yaml)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("physics: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"short padding", func(c *Config) { c.Reconstruction.Padding = []bool{true} }, "padding"},
		{"long padding", func(c *Config) { c.Reconstruction.Padding = []bool{true, true, false} }, "padding"},
		{"precision", func(c *Config) { c.Reconstruction.Precision = "float16" }, "precision"},
		{"executor", func(c *Config) { c.Reconstruction.Executor = "fork" }, "executor"},
		{"buffering", func(c *Config) { c.Reconstruction.Buffering = "triple" }, "buffering"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			_, err := cfg.Options()
			require.Error(t, err)
			assert.ErrorIs(t, err, reconstruction.ErrValidation)

			var verr *reconstruction.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPhantomSettings(t *testing.T) {
	cfg := DefaultConfig()
	g := cfg.Geometry()
	assert.Equal(t, 32, g.Height)
	assert.Equal(t, 5.0, g.Wavelength)
	assert.Equal(t, 20.0, g.Distance)

	s, err := cfg.Scatterer()
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.Z)
	assert.Equal(t, -2.0, s.Y)
	assert.Equal(t, 4.0, s.X)

	cfg.Phantom.Offset = []float64{1}
	_, err = cfg.Scatterer()
	assert.ErrorIs(t, err, reconstruction.ErrValidation)
}
