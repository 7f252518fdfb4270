// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"context"
	"net/http"

	"github.com/JaimeStill/mentor/internal/config"
	"github.com/JaimeStill/mentor/internal/infrastructure"
	"github.com/JaimeStill/mentor/pkg/middleware"
	"github.com/JaimeStill/mentor/pkg/module"
)

// API is the mounted HTTP module plus the websocket gateway that lives
// outside its prefix.
type API struct {
	Module  *module.Module
	Domain  *Domain
	runtime *Runtime
}

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure) (*API, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(ctx, cfg, runtime)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg, runtime.Logger); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))

	return &API{Module: m, Domain: domain, runtime: runtime}, nil
}

// Start registers the domain systems with the lifecycle coordinator.
func (a *API) Start() error {
	return a.Domain.Start(a.runtime)
}

// Socket is the websocket upgrade handler for device connections.
func (a *API) Socket() http.Handler {
	return a.Domain.Socket
}
