package gemini

import (
	"fmt"
	"time"

	"github.com/JaimeStill/mentor/pkg/envconf"
)

// Config holds reasoning service parameters.
type Config struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
	MaxAttempts int     `toml:"max_attempts"`
	Backoff     string  `toml:"backoff"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	APIKey      string
	Model       string
	Temperature string
	Timeout     string
	MaxAttempts string
	Backoff     string
}

// TimeoutDuration bounds a single attempt.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// BackoffDuration is multiplied by the attempt number between retries.
func (c *Config) BackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.Backoff)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
// An empty API key is valid: the adapter then reports itself unavailable.
func (c *Config) Finalize(env *Env) error {
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff == "" {
		c.Backoff = "300ms"
	}

	if env != nil {
		envconf.String(&c.APIKey, env.APIKey)
		envconf.String(&c.Model, env.Model)
		envconf.Float(&c.Temperature, env.Temperature)
		envconf.String(&c.Timeout, env.Timeout)
		envconf.Int(&c.MaxAttempts, env.MaxAttempts)
		envconf.String(&c.Backoff, env.Backoff)
	}

	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	envconf.Merge(&c.APIKey, overlay.APIKey)
	envconf.Merge(&c.Model, overlay.Model)
	envconf.Merge(&c.Temperature, overlay.Temperature)
	envconf.Merge(&c.Timeout, overlay.Timeout)
	envconf.Merge(&c.MaxAttempts, overlay.MaxAttempts)
	envconf.Merge(&c.Backoff, overlay.Backoff)
}

func (c *Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2]")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Backoff); err != nil {
		return fmt.Errorf("invalid backoff: %w", err)
	}
	return nil
}
