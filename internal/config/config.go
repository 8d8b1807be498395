// Package config loads the route table tool's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults match the i2 route tool: routes in rl.txt, table in table.bin,
// storage starting at 1024 records and doubling.
const (
	DefaultRoutesFile      = "rl.txt"
	DefaultTableFile       = "table.bin"
	DefaultInitialCapacity = 1024
	DefaultGrowthFactor    = 2
	DefaultMaxLineLength   = 4096
)

// Config holds the application configuration loaded from a YAML file.
type Config struct {
	// RoutesFile is the text route dump read in build mode.
	RoutesFile string `yaml:"routesFile"`
	// TableFile is the binary table written in build mode and read in query mode.
	TableFile string `yaml:"tableFile"`
	// InitialCapacity is the number of records allocated before the first growth.
	InitialCapacity int `yaml:"initialCapacity"`
	// GrowthFactor multiplies the record capacity when it runs out.
	GrowthFactor int `yaml:"growthFactor"`
	// MaxLineLength is the longest accepted route line in bytes.
	MaxLineLength int `yaml:"maxLineLength"`
	// ResortOnLoad accepts unsorted table files written by older builds.
	ResortOnLoad bool `yaml:"resortOnLoad"`
	// MetricsFile, when set, receives Prometheus metrics in text format.
	MetricsFile string `yaml:"metricsFile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads and unmarshals the configuration from the specified YAML file path.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %s: %w", filePath, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filePath, err)
	}
	return &cfg, nil
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.RoutesFile == "" {
		c.RoutesFile = DefaultRoutesFile
	}
	if c.TableFile == "" {
		c.TableFile = DefaultTableFile
	}
	if c.InitialCapacity == 0 {
		c.InitialCapacity = DefaultInitialCapacity
	}
	if c.GrowthFactor == 0 {
		c.GrowthFactor = DefaultGrowthFactor
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = DefaultMaxLineLength
	}
}

// Validate rejects values the builder cannot work with.
func (c *Config) Validate() error {
	if c.InitialCapacity < 1 {
		return fmt.Errorf("initialCapacity must be positive, got %d", c.InitialCapacity)
	}
	if c.GrowthFactor < 2 {
		return fmt.Errorf("growthFactor must be at least 2, got %d", c.GrowthFactor)
	}
	if c.MaxLineLength < 1 {
		return fmt.Errorf("maxLineLength must be positive, got %d", c.MaxLineLength)
	}
	return nil
}
