package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sqldiag/sqldiag/internal/ingest"
	"github.com/sqldiag/sqldiag/internal/render"
)

// Config is the top-level configuration for the sqldiag tool.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Ingest configures the live event source. Only required for live
	// capture; file and compare modes ignore it.
	Ingest ingest.Config `yaml:"ingest"`

	// Render configures table layout and numeric abbreviation.
	Render render.Options `yaml:"render"`

	// BucketGranularity is the time-bucket width for pivoted reports.
	// Defaults to 1m.
	BucketGranularity time.Duration `yaml:"bucket_granularity"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: ingest.Config{
			Window: ingest.DefaultWindow,
		},
		Render:            render.DefaultOptions(),
		BucketGranularity: time.Minute,
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.BucketGranularity <= 0 {
		return fmt.Errorf("bucket_granularity must be positive")
	}

	if c.Render.LabelWidth <= 0 {
		return fmt.Errorf("render.label_width must be positive")
	}

	if c.Render.Decimals < 0 {
		return fmt.Errorf("render.decimals must not be negative")
	}

	if !(c.Render.Kilo < c.Render.Mega && c.Render.Mega < c.Render.Giga) {
		return fmt.Errorf(
			"render thresholds must satisfy kilo < mega < giga",
		)
	}

	if c.Ingest.Window <= 0 {
		return fmt.Errorf("ingest.window must be positive")
	}

	return nil
}
