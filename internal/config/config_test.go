package config_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/JaimeStill/mentor/internal/config"
)

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("MENTOR_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	return dir
}

func write(t *testing.T, name, body string) {
	t.Helper()
	if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	workspace(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown = %v", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.Level())
	}
	if cfg.API.BasePath != "/api" || cfg.API.SocketPath != "/ws" {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Reasoning.Model == "" {
		t.Error("reasoning model should default")
	}
	if cfg.Notify.Enabled() {
		t.Error("notify should be disabled without a token")
	}
	if cfg.Env() != "local" {
		t.Errorf("env = %q", cfg.Env())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	workspace(t)
	t.Setenv("MENTOR_SERVER_PORT", "9090")
	t.Setenv("MENTOR_LOG_LEVEL", "debug")
	t.Setenv("MENTOR_SESSION_TICK_INTERVAL", "20s")
	t.Setenv("MENTOR_TELEGRAM_TOKEN", "abc")
	t.Setenv("MENTOR_TELEGRAM_CHAT_ID", "42")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.Level())
	}
	if cfg.Session.Whiteboard().Loop.Interval != 20*time.Second {
		t.Errorf("interval = %v", cfg.Session.Whiteboard().Loop.Interval)
	}
	if !cfg.Notify.Enabled() || cfg.Notify.ChatID != 42 {
		t.Errorf("notify = %+v", cfg.Notify)
	}
}

func TestLoadOverlay(t *testing.T) {
	workspace(t)
	t.Setenv("MENTOR_ENV", "test")

	write(t, config.BaseConfigFile, `
version = "1.0.0"

[server]
port = 7000

[session]
greeting = "Hello."
`)
	write(t, "config.test.toml", `
[server]
port = 7001

[gateway]
send_buffer = 32
`)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Version != "1.0.0" {
		t.Errorf("version = %q", cfg.Version)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("port = %d, want overlay value", cfg.Server.Port)
	}
	if cfg.Session.Greeting != "Hello." {
		t.Errorf("greeting = %q", cfg.Session.Greeting)
	}
	if cfg.Gateway.SendBuffer != 32 {
		t.Errorf("send buffer = %d", cfg.Gateway.SendBuffer)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"log level", "MENTOR_LOG_LEVEL", "loud"},
		{"shutdown timeout", "MENTOR_SHUTDOWN_TIMEOUT", "never"},
		{"server timeout", "MENTOR_SERVER_READ_TIMEOUT", "x"},
		{"prefetch", "MENTOR_SESSION_PREFETCH_OFFSET", "1m"},
		{"token without chat id", "MENTOR_TELEGRAM_TOKEN", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			t.Setenv(tt.key, tt.val)
			if _, err := config.Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
