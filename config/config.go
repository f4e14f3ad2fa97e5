// Package config loads the CLI configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type StorageConfig struct {
	// One of "memory", "sqlite", "postgres".
	Driver string `yaml:"driver" validate:"required,oneof=memory sqlite postgres"`

	// Database file for sqlite.
	Path string `yaml:"path"`

	// Connection string for postgres.
	ConnStr string `yaml:"conn_str"`
}

type Config struct {
	// Identifier of the transit network, used to partition the
	// local cache.
	Network string `yaml:"network" validate:"required"`

	// Directory holding the network's timetable CSV files.
	Timetable string `yaml:"timetable" validate:"required"`

	Storage StorageConfig `yaml:"storage" validate:"required"`
}

// Loads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.Storage.Driver == "sqlite" && cfg.Storage.Path == "" {
		return nil, fmt.Errorf("sqlite storage requires a path")
	}
	if cfg.Storage.Driver == "postgres" && cfg.Storage.ConnStr == "" {
		return nil, fmt.Errorf("postgres storage requires a conn_str")
	}

	return &cfg, nil
}
