package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds everything an App needs to run.
type Config struct {
	ScenePaths []string // scene files or directories

	Watch        bool
	PollInterval time.Duration

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	ReloadURL       string
	ReloadNamespace string

	ParseWorkers int
	CacheSize    int

	// Strict turns error diagnostics of the initial load into a failure.
	Strict  bool
	NoColor bool
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ScenePaths) == 0 {
		return nil, errors.New("at least one scene path is required")
	}
	for _, p := range cfg.ScenePaths {
		if p == "" {
			return nil, errors.New("scene paths must not be empty")
		}
	}
	if cfg.PollInterval < 0 {
		return nil, fmt.Errorf("poll interval must not be negative, got %s", cfg.PollInterval)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d is out of range", cfg.HealthcheckPort)
	}
	if cfg.ParseWorkers < 0 {
		return nil, fmt.Errorf("parse workers must not be negative, got %d", cfg.ParseWorkers)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must not be negative, got %d", cfg.CacheSize)
	}
	if cfg.ReloadURL != "" && !cfg.Watch {
		return nil, errors.New("a reload URL requires watch mode")
	}
	return &cfg, nil
}
