package config

import (
	"fmt"
	"time"

	"github.com/JaimeStill/mentor/pkg/envconf"
)

const (
	EnvServerHost         = "MENTOR_SERVER_HOST"
	EnvServerPort         = "MENTOR_SERVER_PORT"
	EnvServerReadTimeout  = "MENTOR_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout = "MENTOR_SERVER_WRITE_TIMEOUT"
)

// ServerConfig holds HTTP server parameters. Timeouts do not apply to
// hijacked websocket connections.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	return d
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	envconf.Merge(&c.Host, overlay.Host)
	envconf.Merge(&c.Port, overlay.Port)
	envconf.Merge(&c.ReadTimeout, overlay.ReadTimeout)
	envconf.Merge(&c.WriteTimeout, overlay.WriteTimeout)
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "30s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "2m"
	}
}

func (c *ServerConfig) loadEnv() {
	envconf.String(&c.Host, EnvServerHost)
	envconf.Int(&c.Port, EnvServerPort)
	envconf.String(&c.ReadTimeout, EnvServerReadTimeout)
	envconf.String(&c.WriteTimeout, EnvServerWriteTimeout)
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, err := time.ParseDuration(c.ReadTimeout); err != nil {
		return fmt.Errorf("invalid read_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("invalid write_timeout: %w", err)
	}
	return nil
}
