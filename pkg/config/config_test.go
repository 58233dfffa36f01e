package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clementsan/poresize/internal/models"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poresize.yaml")
	data := []byte(`transform:
  phase: 1
  workers: 2
histogram:
  bins: 25
  plot_file: hist.png
output:
  preview_axes: [z]
  preview_region: [1, 2, 3, 4, 5, 6]
  compress: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Transform.Phase)
	assert.Equal(t, 2, cfg.Transform.Workers)
	assert.Equal(t, 25, cfg.Histogram.Bins)
	assert.Equal(t, "hist.png", cfg.Histogram.PlotFile)
	assert.Equal(t, []string{"z"}, cfg.Output.PreviewAxes)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, cfg.Output.PreviewRegion)
	assert.True(t, cfg.Output.Compress)
	// untouched keys keep their defaults
	assert.Equal(t, 1, cfg.Porosity.Radius)
	assert.Equal(t, 10.0, cfg.Transform.ProgressStep)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PORESIZE_POROSITY__RADIUS", "4")
	t.Setenv("PORESIZE_LOGGING__LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Porosity.Radius)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transform: [unterminated"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "poresize.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"phase":          func(c *Config) { c.Transform.Phase = 2 },
		"workers":        func(c *Config) { c.Transform.Workers = 0 },
		"bins":           func(c *Config) { c.Histogram.Bins = 0 },
		"radius":         func(c *Config) { c.Porosity.Radius = 0 },
		"porosity phase": func(c *Config) { c.Porosity.Phase = 300 },
		"scale":          func(c *Config) { c.Output.PreviewScale = 0 },
		"axis":           func(c *Config) { c.Output.PreviewAxes = []string{"w"} },
		"region length":  func(c *Config) { c.Output.PreviewRegion = []int{0, 0, 0} },
		"region size":    func(c *Config) { c.Output.PreviewRegion = []int{0, 0, 0, 4, 0, 4} },
		"region start":   func(c *Config) { c.Output.PreviewRegion = []int{-1, 0, 0, 4, 4, 4} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, models.IsConfig(err), "want ConfigError, got %v", err)
		})
	}
}
