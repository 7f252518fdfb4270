package sessions

import (
	"fmt"
	"time"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/internal/whiteboard"
	"github.com/JaimeStill/mentor/pkg/envconf"
)

// Config holds the timing of live sessions.
type Config struct {
	TickInterval      string  `toml:"tick_interval"`
	PrefetchOffset    string  `toml:"prefetch_offset"`
	CountdownStep     string  `toml:"countdown_step"`
	FeedbackDismiss   string  `toml:"feedback_dismiss"`
	HighlightDuration string  `toml:"highlight_duration"`
	MaxHighlight      float64 `toml:"max_highlight"`
	CaptureNotice     int     `toml:"capture_failure_notice"`
	ListenRestart     string  `toml:"listen_restart_delay"`
	SpeakingTimeout   string  `toml:"speaking_timeout"`
	AwaitingTimeout   string  `toml:"awaiting_timeout"`
	FinalizeTimeout   string  `toml:"finalize_timeout"`
	PersistTimeout    string  `toml:"persist_timeout"`
	Greeting          string  `toml:"greeting"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	TickInterval      string
	PrefetchOffset    string
	CountdownStep     string
	FeedbackDismiss   string
	HighlightDuration string
	MaxHighlight      string
	CaptureNotice     string
	ListenRestart     string
	SpeakingTimeout   string
	AwaitingTimeout   string
	FinalizeTimeout   string
	PersistTimeout    string
	Greeting          string
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// Whiteboard returns the analysis loop and feedback settings.
func (c *Config) Whiteboard() whiteboard.Config {
	return whiteboard.Config{
		Loop: analysis.Config{
			Interval:      duration(c.TickInterval),
			Prefetch:      duration(c.PrefetchOffset),
			Step:          duration(c.CountdownStep),
			MaxHighlight:  c.MaxHighlight,
			FailureNotice: c.CaptureNotice,
		},
		Feedback: feedback.Config{
			Dismiss:      duration(c.FeedbackDismiss),
			Highlight:    duration(c.HighlightDuration),
			MaxHighlight: c.MaxHighlight,
		},
	}
}

// Turns returns the turn-taking delays and safety timeouts.
func (c *Config) Turns() turns.Config {
	return turns.Config{
		RestartDelay:    duration(c.ListenRestart),
		SpeakingTimeout: duration(c.SpeakingTimeout),
		AwaitingTimeout: duration(c.AwaitingTimeout),
	}
}

func (c *Config) FinalizeTimeoutDuration() time.Duration {
	return duration(c.FinalizeTimeout)
}

func (c *Config) PersistTimeoutDuration() time.Duration {
	return duration(c.PersistTimeout)
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
	envconf.Merge(&c.TickInterval, overlay.TickInterval)
	envconf.Merge(&c.PrefetchOffset, overlay.PrefetchOffset)
	envconf.Merge(&c.CountdownStep, overlay.CountdownStep)
	envconf.Merge(&c.FeedbackDismiss, overlay.FeedbackDismiss)
	envconf.Merge(&c.HighlightDuration, overlay.HighlightDuration)
	envconf.Merge(&c.MaxHighlight, overlay.MaxHighlight)
	envconf.Merge(&c.CaptureNotice, overlay.CaptureNotice)
	envconf.Merge(&c.ListenRestart, overlay.ListenRestart)
	envconf.Merge(&c.SpeakingTimeout, overlay.SpeakingTimeout)
	envconf.Merge(&c.AwaitingTimeout, overlay.AwaitingTimeout)
	envconf.Merge(&c.FinalizeTimeout, overlay.FinalizeTimeout)
	envconf.Merge(&c.PersistTimeout, overlay.PersistTimeout)
	envconf.Merge(&c.Greeting, overlay.Greeting)
}

func (c *Config) loadDefaults() {
	defaults := []struct {
		dst *string
		val string
	}{
		{&c.TickInterval, "15s"},
		{&c.PrefetchOffset, "3s"},
		{&c.CountdownStep, "1s"},
		{&c.FeedbackDismiss, "12s"},
		{&c.HighlightDuration, "6s"},
		{&c.ListenRestart, "500ms"},
		{&c.SpeakingTimeout, "45s"},
		{&c.AwaitingTimeout, "60s"},
		{&c.FinalizeTimeout, "60s"},
		{&c.PersistTimeout, "10s"},
	}
	for _, d := range defaults {
		if *d.dst == "" {
			*d.dst = d.val
		}
	}
	if c.MaxHighlight == 0 {
		c.MaxHighlight = 0.5
	}
	if c.CaptureNotice == 0 {
		c.CaptureNotice = 3
	}
}

func (c *Config) loadEnv(env *Env) {
	envconf.String(&c.TickInterval, env.TickInterval)
	envconf.String(&c.PrefetchOffset, env.PrefetchOffset)
	envconf.String(&c.CountdownStep, env.CountdownStep)
	envconf.String(&c.FeedbackDismiss, env.FeedbackDismiss)
	envconf.String(&c.HighlightDuration, env.HighlightDuration)
	envconf.Float(&c.MaxHighlight, env.MaxHighlight)
	envconf.Int(&c.CaptureNotice, env.CaptureNotice)
	envconf.String(&c.ListenRestart, env.ListenRestart)
	envconf.String(&c.SpeakingTimeout, env.SpeakingTimeout)
	envconf.String(&c.AwaitingTimeout, env.AwaitingTimeout)
	envconf.String(&c.FinalizeTimeout, env.FinalizeTimeout)
	envconf.String(&c.PersistTimeout, env.PersistTimeout)
	envconf.String(&c.Greeting, env.Greeting)
}

func (c *Config) validate() error {
	durations := []struct {
		name string
		val  string
	}{
		{"tick_interval", c.TickInterval},
		{"prefetch_offset", c.PrefetchOffset},
		{"countdown_step", c.CountdownStep},
		{"feedback_dismiss", c.FeedbackDismiss},
		{"highlight_duration", c.HighlightDuration},
		{"listen_restart_delay", c.ListenRestart},
		{"speaking_timeout", c.SpeakingTimeout},
		{"awaiting_timeout", c.AwaitingTimeout},
		{"finalize_timeout", c.FinalizeTimeout},
		{"persist_timeout", c.PersistTimeout},
	}
	for _, d := range durations {
		if v, err := time.ParseDuration(d.val); err != nil || v <= 0 {
			return fmt.Errorf("invalid %s: %q", d.name, d.val)
		}
	}

	if duration(c.PrefetchOffset) >= duration(c.TickInterval) {
		return fmt.Errorf("prefetch_offset must be shorter than tick_interval")
	}
	if c.MaxHighlight <= 0 || c.MaxHighlight > 1 {
		return fmt.Errorf("max_highlight must be within (0, 1]")
	}
	if c.CaptureNotice < 1 {
		return fmt.Errorf("capture_failure_notice must be at least 1")
	}
	return nil
}
