package cache

import (
	"fmt"
	"time"

	"github.com/JaimeStill/mentor/pkg/envconf"
)

// Config holds Redis connection parameters.
type Config struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
	TTL      string `toml:"ttl"`
	Timeout  string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Addr     string
	Password string
	DB       string
	Prefix   string
	TTL      string
	Timeout  string
}

// TTLDuration returns TTL as a time.Duration.
func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	envconf.Merge(&c.Addr, overlay.Addr)
	envconf.Merge(&c.Password, overlay.Password)
	envconf.Merge(&c.DB, overlay.DB)
	envconf.Merge(&c.Prefix, overlay.Prefix)
	envconf.Merge(&c.TTL, overlay.TTL)
	envconf.Merge(&c.Timeout, overlay.Timeout)
}

func (c *Config) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Prefix == "" {
		c.Prefix = "mentor"
	}
	if c.TTL == "" {
		c.TTL = "24h"
	}
	if c.Timeout == "" {
		c.Timeout = "3s"
	}
}

func (c *Config) loadEnv(env *Env) {
	envconf.String(&c.Addr, env.Addr)
	envconf.String(&c.Password, env.Password)
	envconf.Int(&c.DB, env.DB)
	envconf.String(&c.Prefix, env.Prefix)
	envconf.String(&c.TTL, env.TTL)
	envconf.String(&c.Timeout, env.Timeout)
}

func (c *Config) validate() error {
	if c.DB < 0 {
		return fmt.Errorf("invalid db: %d", c.DB)
	}
	if _, err := time.ParseDuration(c.TTL); err != nil {
		return fmt.Errorf("invalid ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
