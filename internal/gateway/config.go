package gateway

import (
	"fmt"
	"time"

	"github.com/JaimeStill/mentor/pkg/envconf"
	"github.com/JaimeStill/mentor/pkg/formatting"
)

// Config holds websocket connection parameters.
type Config struct {
	// MaxMessageSize bounds inbound frames; full-resolution captures arrive
	// as data URLs, so this must fit the largest expected snapshot.
	MaxMessageSize string `toml:"max_message_size"`
	CaptureTimeout string `toml:"capture_timeout"`
	PongWait       string `toml:"pong_wait"`
	WriteWait      string `toml:"write_wait"`
	SendBuffer     int    `toml:"send_buffer"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxMessageSize string
	CaptureTimeout string
	PongWait       string
	WriteWait      string
	SendBuffer     string
}

// ReadLimit returns MaxMessageSize in bytes.
func (c *Config) ReadLimit() int64 {
	n, _ := formatting.ParseBytes(c.MaxMessageSize)
	return n
}

func (c *Config) CaptureTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CaptureTimeout)
	return d
}

func (c *Config) PongWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.PongWait)
	return d
}

func (c *Config) WriteWaitDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteWait)
	return d
}

// PingPeriod is how often the server pings; it must be shorter than PongWait.
func (c *Config) PingPeriod() time.Duration {
	return c.PongWaitDuration() * 9 / 10
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.MaxMessageSize == "" {
		c.MaxMessageSize = "8MB"
	}
	if c.CaptureTimeout == "" {
		c.CaptureTimeout = "10s"
	}
	if c.PongWait == "" {
		c.PongWait = "60s"
	}
	if c.WriteWait == "" {
		c.WriteWait = "10s"
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = 256
	}

	if env != nil {
		envconf.String(&c.MaxMessageSize, env.MaxMessageSize)
		envconf.String(&c.CaptureTimeout, env.CaptureTimeout)
		envconf.String(&c.PongWait, env.PongWait)
		envconf.String(&c.WriteWait, env.WriteWait)
		envconf.Int(&c.SendBuffer, env.SendBuffer)
	}

	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	envconf.Merge(&c.MaxMessageSize, overlay.MaxMessageSize)
	envconf.Merge(&c.CaptureTimeout, overlay.CaptureTimeout)
	envconf.Merge(&c.PongWait, overlay.PongWait)
	envconf.Merge(&c.WriteWait, overlay.WriteWait)
	envconf.Merge(&c.SendBuffer, overlay.SendBuffer)
}

func (c *Config) validate() error {
	if n, err := formatting.ParseBytes(c.MaxMessageSize); err != nil || n <= 0 {
		return fmt.Errorf("invalid max_message_size: %q", c.MaxMessageSize)
	}
	for name, v := range map[string]string{
		"capture_timeout": c.CaptureTimeout,
		"pong_wait":       c.PongWait,
		"write_wait":      c.WriteWait,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("send_buffer must be positive")
	}
	return nil
}
