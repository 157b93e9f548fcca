package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProjectConfig struct {
	Project    string           `yaml:"project"`
	Version    int              `yaml:"version"`
	Database   DatabaseConfig   `yaml:"database"`
	Build      BuildConfig      `yaml:"build"`
	Validation ValidationConfig `yaml:"validation"`
	Assets     AssetsConfig     `yaml:"assets"`
}

type DatabaseConfig struct {
	// Driver selects the document store backend: postgres, sqlite, or
	// memory (no persistence, useful for dry runs).
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type BuildConfig struct {
	// BatchSize caps how many content blocks a single append writes. The
	// backend rejects writes whose literal nests too deep, so batches
	// stay small.
	BatchSize int `yaml:"batch_size"`
}

type ValidationConfig struct {
	// MinKeyLength is the floor below which word-like node keys are
	// treated as fabricated.
	MinKeyLength int `yaml:"min_key_length"`
}

type AssetsConfig struct {
	// FrameBaseURL is the external design tool API used by frame fetches.
	FrameBaseURL        string `yaml:"frame_base_url"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
}

const (
	DefaultBatchSize           = 4
	DefaultMinKeyLength        = 10
	DefaultFetchTimeoutSeconds = 30
)

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Build.BatchSize == 0 {
		cfg.Build.BatchSize = DefaultBatchSize
	}
	if cfg.Validation.MinKeyLength == 0 {
		cfg.Validation.MinKeyLength = DefaultMinKeyLength
	}
	if cfg.Assets.FetchTimeoutSeconds == 0 {
		cfg.Assets.FetchTimeoutSeconds = DefaultFetchTimeoutSeconds
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			return fmt.Errorf("database dsn is required for driver %s", cfg.Database.Driver)
		}
	case "memory":
	case "":
		return fmt.Errorf("database driver is required")
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	if cfg.Build.BatchSize < 1 || cfg.Build.BatchSize > 16 {
		return fmt.Errorf("build batch_size must be between 1 and 16, got %d", cfg.Build.BatchSize)
	}
	if cfg.Validation.MinKeyLength < 4 {
		return fmt.Errorf("validation min_key_length must be at least 4, got %d", cfg.Validation.MinKeyLength)
	}
	if cfg.Assets.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("assets fetch_timeout_seconds must be positive, got %d", cfg.Assets.FetchTimeoutSeconds)
	}

	return nil
}
