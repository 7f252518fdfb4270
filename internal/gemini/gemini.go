// Package gemini is the reasoning service adapter. It grades whiteboard
// snapshots, carries the conversation and writes final reviews through the
// Gemini API, composing system instructions from the prompts package.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/prompts"
	"github.com/JaimeStill/mentor/pkg/formatting"
	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

var errEmptyResponse = errors.New("empty response")

// Generator performs one JSON-mode generation call.
type Generator interface {
	Generate(ctx context.Context, system string, parts ...genai.Part) (string, error)
}

type modelGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// Generate runs the model with the given system instruction and returns the
// first text part of the first candidate.
func (g *modelGenerator) Generate(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &g.temperature,
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}

	text := firstText(resp)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok && strings.TrimSpace(string(t)) != "" {
				return string(t)
			}
		}
	}
	return ""
}

// Client implements the analysis, conversation and review contracts.
type Client struct {
	gen     Generator
	closer  func() error
	prompts prompts.Source
	timeout time.Duration
	tries   int
	backoff time.Duration
	logger  *slog.Logger
}

// New creates a Client backed by the Gemini API. Without an API key the
// client is created but every call fails with capability.ErrUnavailable
// wrapped in capability.ErrService.
func New(ctx context.Context, cfg *Config, src prompts.Source, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		c := NewWithGenerator(nil, cfg, src, logger)
		c.logger.Warn("no api key configured, reasoning service unavailable")
		return c, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := NewWithGenerator(&modelGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}, cfg, src, logger)
	c.closer = client.Close
	return c, nil
}

// NewWithGenerator creates a Client over an arbitrary Generator. A nil
// generator yields an unavailable client.
func NewWithGenerator(gen Generator, cfg *Config, src prompts.Source, logger *slog.Logger) *Client {
	if src == nil {
		src = prompts.Defaults{}
	}
	return &Client{
		gen:     gen,
		prompts: src,
		timeout: cfg.TimeoutDuration(),
		tries:   max(cfg.MaxAttempts, 1),
		backoff: cfg.BackoffDuration(),
		logger:  logger.With("system", "gemini"),
	}
}

// Available reports whether calls can reach the service.
func (c *Client) Available() bool {
	return c.gen != nil
}

// Start registers a shutdown hook that releases the API client.
func (c *Client) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if c.closer == nil {
			return
		}
		if err := c.closer(); err != nil {
			c.logger.Error("gemini client close failed", "error", err)
		}
	})
	return nil
}

// call composes the stage prompt, generates with retries and decodes the
// JSON reply into T. Every failure wraps capability.ErrService.
func call[T any](ctx context.Context, c *Client, stage prompts.Stage, sections []prompts.Section, parts ...genai.Part) (T, error) {
	var zero T

	if c.gen == nil {
		return zero, fmt.Errorf("%w: %s: %w", capability.ErrService, stage, capability.ErrUnavailable)
	}

	system, err := prompts.Compose(ctx, c.prompts, stage, sections...)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", capability.ErrService, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.tries; attempt++ {
		text, err := c.attempt(ctx, system, parts)
		if err == nil {
			out, perr := formatting.Parse[T](text)
			if perr != nil {
				return zero, fmt.Errorf("%w: %s: %w", capability.ErrService, stage, perr)
			}
			return out, nil
		}

		lastErr = err
		c.logger.Warn("generation attempt failed", "stage", stage, "attempt", attempt, "error", err)

		if attempt == c.tries || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	return zero, fmt.Errorf("%w: %s: %w", capability.ErrService, stage, lastErr)
}

func (c *Client) attempt(ctx context.Context, system string, parts []genai.Part) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.gen.Generate(ctx, system, parts...)
}
