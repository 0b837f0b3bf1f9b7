// Package config loads codelens configuration from YAML with environment
// variable overrides. A missing config file yields the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"codelens/internal/optimizer"
)

// Config holds all codelens configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Knowledge graph settings
	Graph GraphConfig `yaml:"graph"`

	// Storage backend
	Storage StorageConfig `yaml:"storage"`

	// Context optimization pipeline
	Optimizer optimizer.Config `yaml:"optimizer"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GraphConfig configures graph traversal bounds.
type GraphConfig struct {
	MaxPathDepth     int `yaml:"max_path_depth"`
	MaxNeighborDepth int `yaml:"max_neighbor_depth"`
}

// StorageConfig selects and configures the storage adapter.
type StorageConfig struct {
	Backend      string `yaml:"backend"` // memory, sqlite
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the category logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codelens",
		Version: "0.1.0",
		Graph: GraphConfig{
			MaxPathDepth:     5,
			MaxNeighborDepth: 3,
		},
		Storage: StorageConfig{
			Backend:      "sqlite",
			DatabasePath: filepath.Join(".codelens", "graph.db"),
		},
		Optimizer: optimizer.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "codelens.log",
		},
	}
}

// Load loads configuration from a YAML file. A missing file returns the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("CODELENS_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if backend := os.Getenv("CODELENS_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("CODELENS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if depth := os.Getenv("CODELENS_MAX_PATH_DEPTH"); depth != "" {
		if n, err := strconv.Atoi(depth); err == nil && n > 0 {
			c.Graph.MaxPathDepth = n
		}
	}
}
