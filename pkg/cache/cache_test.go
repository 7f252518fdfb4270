package cache_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/mentor/pkg/cache"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		parts  []string
		want   string
	}{
		{"prefixed", "mentor", []string{"session", "abc", "last_checked"}, "mentor:session:abc:last_checked"},
		{"no prefix", "", []string{"verdict", "1"}, "verdict:1"},
		{"empty parts skipped", "mentor", []string{"", "x", ""}, "mentor:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cache.Key(tt.prefix, tt.parts...); got != tt.want {
				t.Errorf("Key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg cache.Config
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if cfg.Addr != "localhost:6379" {
			t.Errorf("Addr = %q", cfg.Addr)
		}
		if cfg.TTLDuration() != 24*time.Hour {
			t.Errorf("TTL = %v, want 24h", cfg.TTLDuration())
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_CACHE_ADDR", "redis:6380")
		t.Setenv("TEST_CACHE_DB", "2")

		var cfg cache.Config
		err := cfg.Finalize(&cache.Env{Addr: "TEST_CACHE_ADDR", DB: "TEST_CACHE_DB"})
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if cfg.Addr != "redis:6380" || cfg.DB != 2 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("invalid ttl", func(t *testing.T) {
		cfg := cache.Config{TTL: "forever"}
		if err := cfg.Finalize(nil); err == nil {
			t.Error("expected error for invalid ttl")
		}
	})
}

func TestConfigMerge(t *testing.T) {
	base := cache.Config{Addr: "localhost:6379", Prefix: "mentor", TTL: "24h"}
	base.Merge(&cache.Config{Addr: "cache:6379", TTL: ""})

	if base.Addr != "cache:6379" {
		t.Errorf("Addr = %q", base.Addr)
	}
	if base.TTL != "24h" {
		t.Errorf("empty overlay TTL should not apply, got %q", base.TTL)
	}
}
