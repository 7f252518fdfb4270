package notify

import (
	"fmt"

	"github.com/JaimeStill/mentor/pkg/envconf"
)

// Config holds guardian notification parameters. Notification is disabled
// unless both a bot token and a chat id are present.
type Config struct {
	Token  string `toml:"token"`
	ChatID int64  `toml:"chat_id"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Token  string
	ChatID string
}

// Enabled reports whether notifications should be sent.
func (c *Config) Enabled() bool {
	return c.Token != "" && c.ChatID != 0
}

// Finalize applies environment variable overrides and validation.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		envconf.String(&c.Token, env.Token)
		envconf.Int64(&c.ChatID, env.ChatID)
	}

	if c.Token != "" && c.ChatID == 0 {
		return fmt.Errorf("chat_id required when token is set")
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	envconf.Merge(&c.Token, overlay.Token)
	envconf.Merge(&c.ChatID, overlay.ChatID)
}
