// Package config provides configuration loading and management for poresize.
// It handles loading configuration from YAML files and environment variables
// and provides default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/clementsan/poresize/internal/models"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// PORESIZE_TRANSFORM__WORKERS=8 sets transform.workers.
const EnvPrefix = "PORESIZE_"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Covering-radius transform parameters
	Transform struct {
		// Phase is the label (0 or 1) the transform is computed for
		Phase int `yaml:"phase" koanf:"phase"`

		// Workers is the number of goroutines scanning ball centers
		Workers int `yaml:"workers" koanf:"workers"`

		// ProgressStep is the percentage between two progress log lines
		ProgressStep float64 `yaml:"progress_step" koanf:"progress_step"`
	} `yaml:"transform" koanf:"transform"`

	// Histogram parameters
	Histogram struct {
		// Bins is the number of equal-width bins over [0, max]
		Bins int `yaml:"bins" koanf:"bins"`

		// PlotFile is an optional PNG bar chart of the histogram
		PlotFile string `yaml:"plot_file" koanf:"plot_file"`

		// PlotWidth and PlotHeight are the chart size in inches
		PlotWidth  float64 `yaml:"plot_width" koanf:"plot_width"`
		PlotHeight float64 `yaml:"plot_height" koanf:"plot_height"`
	} `yaml:"histogram" koanf:"histogram"`

	// Local porosity parameters
	Porosity struct {
		// Phase is the label counted as pore space
		Phase int `yaml:"phase" koanf:"phase"`

		// Radius is the half-width of the cubic neighborhood in voxels
		Radius int `yaml:"radius" koanf:"radius"`

		// Workers is the number of goroutines used per separable pass
		Workers int `yaml:"workers" koanf:"workers"`
	} `yaml:"porosity" koanf:"porosity"`

	// Output parameters
	Output struct {
		// Compress enables zlib compression of written MetaImage payloads
		Compress bool `yaml:"compress" koanf:"compress"`

		// PreviewDir receives PNG slices of the result when set
		PreviewDir string `yaml:"preview_dir" koanf:"preview_dir"`

		// PreviewAxes lists the axes to slice along
		PreviewAxes []string `yaml:"preview_axes" koanf:"preview_axes"`

		// PreviewRegion restricts previews to a subvolume given as
		// x, y, z, width, height, depth; empty previews the whole volume
		PreviewRegion []int `yaml:"preview_region,omitempty" koanf:"preview_region"`

		// PreviewScale is the integer upscaling factor of preview images
		PreviewScale int `yaml:"preview_scale" koanf:"preview_scale"`

		// MetricsFile receives Prometheus text metrics when set
		MetricsFile string `yaml:"metrics_file" koanf:"metrics_file"`
	} `yaml:"output" koanf:"output"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level" koanf:"level"`

		// JSON switches the log formatter to JSON lines
		JSON bool `yaml:"json" koanf:"json"`
	} `yaml:"logging" koanf:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Transform.Phase = 0
	cfg.Transform.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Transform.ProgressStep = 10

	cfg.Histogram.Bins = 10
	cfg.Histogram.PlotWidth = 8
	cfg.Histogram.PlotHeight = 5

	cfg.Porosity.Phase = 0
	cfg.Porosity.Radius = 1
	cfg.Porosity.Workers = runtime.NumCPU()

	cfg.Output.Compress = false
	cfg.Output.PreviewAxes = []string{"x", "y", "z"}
	cfg.Output.PreviewScale = 1

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides on top of it.
// If the file doesn't exist, it starts from the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	envKey := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	// Lists from the file replace the defaults instead of merging with them.
	if k.Exists("output.preview_axes") {
		cfg.Output.PreviewAxes = nil
	}
	if k.Exists("output.preview_region") {
		cfg.Output.PreviewRegion = nil
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate rejects values no command can run with
func (c *Config) Validate() error {
	if c.Transform.Phase != 0 && c.Transform.Phase != 1 {
		return models.Configf("transform phase must be 0 or 1, got %d", c.Transform.Phase)
	}
	if c.Transform.Workers < 1 {
		return models.Configf("transform workers must be at least 1, got %d", c.Transform.Workers)
	}
	if c.Histogram.Bins < 1 {
		return models.Configf("histogram bins must be at least 1, got %d", c.Histogram.Bins)
	}
	if c.Porosity.Phase < 0 || c.Porosity.Phase > 255 {
		return models.Configf("porosity phase must be a label in 0..255, got %d", c.Porosity.Phase)
	}
	if c.Porosity.Radius < 1 {
		return models.Configf("neighborhood size must be greater than zero, got %d", c.Porosity.Radius)
	}
	if c.Porosity.Workers < 1 {
		return models.Configf("porosity workers must be at least 1, got %d", c.Porosity.Workers)
	}
	if c.Output.PreviewScale < 1 {
		return models.Configf("preview scale must be at least 1, got %d", c.Output.PreviewScale)
	}
	if r := c.Output.PreviewRegion; len(r) > 0 {
		if len(r) != 6 {
			return models.Configf("preview region needs x, y, z, width, height, depth, got %d values", len(r))
		}
		if r[0] < 0 || r[1] < 0 || r[2] < 0 || r[3] < 1 || r[4] < 1 || r[5] < 1 {
			return models.Configf("invalid preview region %v", r)
		}
	}
	for _, axis := range c.Output.PreviewAxes {
		switch axis {
		case "x", "X", "y", "Y", "z", "Z":
		default:
			return models.Configf("invalid preview axis: %s (must be x, y, or z)", axis)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yamlv3.Marshal(cfg)
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
