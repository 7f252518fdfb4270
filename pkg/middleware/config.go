package middleware

import (
	"slices"

	"github.com/JaimeStill/mentor/pkg/envconf"
)

// CORSConfig holds CORS policy settings. The same origin list gates
// websocket upgrades.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

// CORSEnv maps CORS config fields to environment variable names for override injection.
type CORSEnv struct {
	Enabled          string
	Origins          string
	AllowedMethods   string
	AllowedHeaders   string
	AllowCredentials string
	MaxAge           string
}

// Finalize applies defaults and environment variable overrides.
func (c *CORSConfig) Finalize(env *CORSEnv) error {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600
	}

	if env != nil {
		envconf.Bool(&c.Enabled, env.Enabled)
		envconf.List(&c.Origins, env.Origins)
		envconf.List(&c.AllowedMethods, env.AllowedMethods)
		envconf.List(&c.AllowedHeaders, env.AllowedHeaders)
		envconf.Bool(&c.AllowCredentials, env.AllowCredentials)
		envconf.Int(&c.MaxAge, env.MaxAge)
	}
	return nil
}

// Merge overwrites fields from overlay. Booleans always apply; slices and
// MaxAge apply when set.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	c.Enabled = overlay.Enabled
	c.AllowCredentials = overlay.AllowCredentials

	if overlay.Origins != nil {
		c.Origins = overlay.Origins
	}
	if overlay.AllowedMethods != nil {
		c.AllowedMethods = overlay.AllowedMethods
	}
	if overlay.AllowedHeaders != nil {
		c.AllowedHeaders = overlay.AllowedHeaders
	}
	envconf.Merge(&c.MaxAge, overlay.MaxAge)
}

// AllowsOrigin reports whether origin may call the API. With CORS disabled
// every origin is allowed; an empty origin (same-origin or non-browser) always is.
func (c *CORSConfig) AllowsOrigin(origin string) bool {
	if !c.Enabled || origin == "" {
		return true
	}
	return slices.Contains(c.Origins, origin) || slices.Contains(c.Origins, "*")
}
