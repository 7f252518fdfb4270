package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/mentor/internal/gateway"
	"github.com/JaimeStill/mentor/internal/gemini"
	"github.com/JaimeStill/mentor/internal/notify"
	"github.com/JaimeStill/mentor/internal/sessions"
	"github.com/JaimeStill/mentor/pkg/cache"
	"github.com/JaimeStill/mentor/pkg/database"
	"github.com/JaimeStill/mentor/pkg/envconf"
	"github.com/JaimeStill/mentor/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvMentorEnv             = "MENTOR_ENV"
	EnvMentorShutdownTimeout = "MENTOR_SHUTDOWN_TIMEOUT"
	EnvMentorVersion         = "MENTOR_VERSION"
	EnvMentorLogLevel        = "MENTOR_LOG_LEVEL"
)

var databaseEnv = &database.Env{
	Host:            "MENTOR_DB_HOST",
	Port:            "MENTOR_DB_PORT",
	Name:            "MENTOR_DB_NAME",
	User:            "MENTOR_DB_USER",
	Password:        "MENTOR_DB_PASSWORD",
	SSLMode:         "MENTOR_DB_SSL_MODE",
	MaxOpenConns:    "MENTOR_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "MENTOR_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "MENTOR_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "MENTOR_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "MENTOR_STORAGE_CONTAINER_NAME",
	ConnectionString: "MENTOR_STORAGE_CONNECTION_STRING",
	AccountURL:       "MENTOR_STORAGE_ACCOUNT_URL",
}

var cacheEnv = &cache.Env{
	Addr:     "MENTOR_CACHE_ADDR",
	Password: "MENTOR_CACHE_PASSWORD",
	DB:       "MENTOR_CACHE_DB",
	Prefix:   "MENTOR_CACHE_PREFIX",
	TTL:      "MENTOR_CACHE_TTL",
	Timeout:  "MENTOR_CACHE_TIMEOUT",
}

var reasoningEnv = &gemini.Env{
	APIKey:      "MENTOR_GEMINI_API_KEY",
	Model:       "MENTOR_GEMINI_MODEL",
	Temperature: "MENTOR_GEMINI_TEMPERATURE",
	Timeout:     "MENTOR_GEMINI_TIMEOUT",
	MaxAttempts: "MENTOR_GEMINI_MAX_ATTEMPTS",
	Backoff:     "MENTOR_GEMINI_BACKOFF",
}

var sessionEnv = &sessions.Env{
	TickInterval:      "MENTOR_SESSION_TICK_INTERVAL",
	PrefetchOffset:    "MENTOR_SESSION_PREFETCH_OFFSET",
	CountdownStep:     "MENTOR_SESSION_COUNTDOWN_STEP",
	FeedbackDismiss:   "MENTOR_SESSION_FEEDBACK_DISMISS",
	HighlightDuration: "MENTOR_SESSION_HIGHLIGHT_DURATION",
	MaxHighlight:      "MENTOR_SESSION_MAX_HIGHLIGHT",
	CaptureNotice:     "MENTOR_SESSION_CAPTURE_FAILURE_NOTICE",
	ListenRestart:     "MENTOR_SESSION_LISTEN_RESTART_DELAY",
	SpeakingTimeout:   "MENTOR_SESSION_SPEAKING_TIMEOUT",
	AwaitingTimeout:   "MENTOR_SESSION_AWAITING_TIMEOUT",
	FinalizeTimeout:   "MENTOR_SESSION_FINALIZE_TIMEOUT",
	PersistTimeout:    "MENTOR_SESSION_PERSIST_TIMEOUT",
	Greeting:          "MENTOR_SESSION_GREETING",
}

var gatewayEnv = &gateway.Env{
	MaxMessageSize: "MENTOR_GATEWAY_MAX_MESSAGE_SIZE",
	CaptureTimeout: "MENTOR_GATEWAY_CAPTURE_TIMEOUT",
	PongWait:       "MENTOR_GATEWAY_PONG_WAIT",
	WriteWait:      "MENTOR_GATEWAY_WRITE_WAIT",
	SendBuffer:     "MENTOR_GATEWAY_SEND_BUFFER",
}

var notifyEnv = &notify.Env{
	Token:  "MENTOR_TELEGRAM_TOKEN",
	ChatID: "MENTOR_TELEGRAM_CHAT_ID",
}

// Config is the root configuration for the Mentor service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	Cache           cache.Config    `toml:"cache"`
	API             APIConfig       `toml:"api"`
	Reasoning       gemini.Config   `toml:"reasoning"`
	Session         sessions.Config `toml:"session"`
	Gateway         gateway.Config  `toml:"gateway"`
	Notify          notify.Config   `toml:"notify"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
	LogLevel        string          `toml:"log_level"`
}

// Env returns the MENTOR_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvMentorEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	lvl.UnmarshalText([]byte(c.LogLevel))
	return lvl
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	envconf.Merge(&c.ShutdownTimeout, overlay.ShutdownTimeout)
	envconf.Merge(&c.Version, overlay.Version)
	envconf.Merge(&c.LogLevel, overlay.LogLevel)
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Cache.Merge(&overlay.Cache)
	c.API.Merge(&overlay.API)
	c.Reasoning.Merge(&overlay.Reasoning)
	c.Session.Merge(&overlay.Session)
	c.Gateway.Merge(&overlay.Gateway)
	c.Notify.Merge(&overlay.Notify)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Cache.Finalize(cacheEnv); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Reasoning.Finalize(reasoningEnv); err != nil {
		return fmt.Errorf("reasoning: %w", err)
	}
	if err := c.Session.Finalize(sessionEnv); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Gateway.Finalize(gatewayEnv); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := c.Notify.Finalize(notifyEnv); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) loadEnv() {
	envconf.String(&c.ShutdownTimeout, EnvMentorShutdownTimeout)
	envconf.String(&c.Version, EnvMentorVersion)
	envconf.String(&c.LogLevel, EnvMentorLogLevel)
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvMentorEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
