package openapi

import "github.com/JaimeStill/mentor/pkg/envconf"

// Config holds the metadata of the generated API document.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// ConfigEnv maps config fields to environment variable names for override injection.
type ConfigEnv struct {
	Title       string
	Description string
}

// Finalize applies defaults and environment variable overrides.
func (c *Config) Finalize(env *ConfigEnv) error {
	if c.Title == "" {
		c.Title = "Mentor API"
	}
	if c.Description == "" {
		c.Description = "Live tutoring sessions, their history, and reasoning prompt overrides."
	}
	if env != nil {
		envconf.String(&c.Title, env.Title)
		envconf.String(&c.Description, env.Description)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	envconf.Merge(&c.Title, overlay.Title)
	envconf.Merge(&c.Description, overlay.Description)
}
