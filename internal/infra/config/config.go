// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Log     LogConfig     `yaml:"log"`
}

// TrackerConfig represents session tracking configuration.
type TrackerConfig struct {
	HeartbeatIntervalMs int  `yaml:"heartbeat_interval_ms" default:"10000" validate:"gte=100,lte=600000"`
	StateLimit          int  `yaml:"state_limit" default:"10" validate:"gte=1,lte=100"`
	IdleTimeoutSec      int  `yaml:"idle_timeout_sec" default:"1800" validate:"gte=-1"` // -1 disables
	AdvancePlayhead     bool `yaml:"advance_playhead"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("MEDIATRACK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MEDIATRACK_HEARTBEAT_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid MEDIATRACK_HEARTBEAT_INTERVAL_MS %q", v)
		}
		c.Tracker.HeartbeatIntervalMs = ms
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// HeartbeatInterval returns the heartbeat interval as a duration.
func (t TrackerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(t.HeartbeatIntervalMs) * time.Millisecond
}

// IdleTimeout returns the idle timeout as a duration. Zero means disabled.
func (t TrackerConfig) IdleTimeout() time.Duration {
	if t.IdleTimeoutSec < 0 {
		return 0
	}
	return time.Duration(t.IdleTimeoutSec) * time.Second
}
