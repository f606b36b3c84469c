// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // embedded zoneinfo for STATS_LOCATION

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the server.
type Config struct {
	AppAddr      string        `envconfig:"APP_ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`

	DBPath string `envconfig:"DB_PATH" default:"./data/billdesk.db"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// SessionTTL is how long an idle return session is kept.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"30m"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	// StatsLocation is the time zone sales statistics are bucketed in.
	StatsLocation string `envconfig:"STATS_LOCATION" default:"Asia/Kolkata"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.RateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", cfg.RateLimitPerMinute)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves StatsLocation.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.StatsLocation)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_LOCATION %q: %w", c.StatsLocation, err)
	}
	return loc, nil
}
