package storage

import (
	"fmt"

	"github.com/JaimeStill/mentor/pkg/envconf"
)

// Config holds Azure Blob Storage connection parameters. Either ConnectionString
// or AccountURL must be set; AccountURL authenticates with the default Azure
// credential chain.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName    string
	ConnectionString string
	AccountURL       string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.ContainerName == "" {
		c.ContainerName = "mentor"
	}
	if env != nil {
		envconf.String(&c.ContainerName, env.ContainerName)
		envconf.String(&c.ConnectionString, env.ConnectionString)
		envconf.String(&c.AccountURL, env.AccountURL)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	envconf.Merge(&c.ContainerName, overlay.ContainerName)
	envconf.Merge(&c.ConnectionString, overlay.ConnectionString)
	envconf.Merge(&c.AccountURL, overlay.AccountURL)
}

func (c *Config) validate() error {
	if c.ConnectionString == "" && c.AccountURL == "" {
		return fmt.Errorf("connection_string or account_url required")
	}
	return nil
}
