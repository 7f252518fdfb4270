package api

import (
	"context"
	"fmt"

	"github.com/JaimeStill/mentor/internal/config"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/gateway"
	"github.com/JaimeStill/mentor/internal/gemini"
	"github.com/JaimeStill/mentor/internal/history"
	"github.com/JaimeStill/mentor/internal/notify"
	"github.com/JaimeStill/mentor/internal/prompts"
	"github.com/JaimeStill/mentor/internal/sessions"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Prompts   prompts.System
	History   history.System
	Reasoning *gemini.Client
	Notifier  *notify.Notifier
	Hub       *gateway.Hub
	Sessions  *sessions.Registry
	Socket    *gateway.Handler
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(ctx context.Context, cfg *config.Config, runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)

	historySystem := history.New(
		db,
		runtime.Cache,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	reasoning, err := gemini.New(ctx, &cfg.Reasoning, promptsSystem, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("reasoning init failed: %w", err)
	}

	notifier, err := notify.New(&cfg.Notify, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("notify init failed: %w", err)
	}

	enrichers := []feedback.Enricher{
		sessions.ReviewEnricher(reasoning, historySystem),
	}
	if notifier.Enabled() {
		enrichers = append(enrichers, notifier.Enricher())
	}

	hub := gateway.NewHub(runtime.Logger)

	registry := sessions.New(runtime.Lifecycle, &cfg.Session, sessions.Deps{
		Devices:   sessions.HubDirectory{Hub: hub},
		Store:     historySystem,
		Tutor:     reasoning,
		Enrichers: enrichers,
		Logger:    runtime.Logger,
	})

	return &Domain{
		Prompts:   promptsSystem,
		History:   historySystem,
		Reasoning: reasoning,
		Notifier:  notifier,
		Hub:       hub,
		Sessions:  registry,
		Socket:    gateway.NewHandler(hub, &cfg.Gateway, &cfg.API.CORS, runtime.Logger),
	}, nil
}

// Start registers the domain's long-lived systems with the lifecycle
// coordinator.
func (d *Domain) Start(runtime *Runtime) error {
	if err := d.Reasoning.Start(runtime.Lifecycle); err != nil {
		return fmt.Errorf("reasoning start failed: %w", err)
	}
	d.Sessions.Start()
	d.Hub.Start(runtime.Lifecycle)
	return nil
}
