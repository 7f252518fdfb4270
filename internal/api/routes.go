package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/mentor/internal/config"
	"github.com/JaimeStill/mentor/internal/sessions"
	"github.com/JaimeStill/mentor/pkg/openapi"
	"github.com/JaimeStill/mentor/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config, logger *slog.Logger) error {
	groups := []routes.Group{
		domain.Prompts.Handler().Routes(),
		domain.History.Handler().Routes(),
		sessions.NewHandler(domain.Sessions, logger).Routes(),
	}
	routes.Register(mux, groups...)

	spec := openapi.NewSpec(&cfg.API.OpenAPI, cfg.Version)
	spec.AddServer(cfg.API.BasePath)
	spec.AddRoutes(groups...)

	serve, err := openapi.Handler(spec)
	if err != nil {
		return fmt.Errorf("encode openapi document: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", serve)
	return nil
}
