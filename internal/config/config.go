// Package config loads navqueue settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/navqueue/internal/router"
)

// Config is the process configuration. CLI flags override these values.
type Config struct {
	// Policy is the default state-loss policy for scenarios that do not
	// name one.
	Policy router.StateLossPolicy `env:"NAVQUEUE_POLICY" envDefault:"postpone"`

	LogLevel  string `env:"NAVQUEUE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"NAVQUEUE_LOG_FORMAT" envDefault:"text"`

	// DB is the journal path. Empty disables journaling.
	DB string `env:"NAVQUEUE_DB"`

	// Metrics prints the router metrics after a run.
	Metrics bool `env:"NAVQUEUE_METRICS" envDefault:"false"`

	// SettleTimeout bounds the harness wait after each scenario step.
	SettleTimeout time.Duration `env:"NAVQUEUE_SETTLE_TIMEOUT" envDefault:"5s"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.SettleTimeout <= 0 {
		return Config{}, fmt.Errorf("parse env: NAVQUEUE_SETTLE_TIMEOUT must be positive, got %s", cfg.SettleTimeout)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
