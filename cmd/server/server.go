package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/JaimeStill/mentor/internal/api"
	"github.com/JaimeStill/mentor/internal/config"
	"github.com/JaimeStill/mentor/internal/infrastructure"
	"github.com/JaimeStill/mentor/pkg/middleware"
	"github.com/JaimeStill/mentor/pkg/module"
)

type Server struct {
	infra *infrastructure.Infrastructure
	api   *api.API
	http  *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	a, err := api.NewModule(context.Background(), cfg, infra)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra, a)
	router.Mount(a.Module)
	router.Handle("GET "+cfg.API.SocketPath, middleware.Recover(infra.Logger)(a.Socket()))

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"modules", router.Prefixes(),
		"socket", cfg.API.SocketPath,
	)

	return &Server{
		infra: infra,
		api:   a,
		http:  newHTTPServer(&cfg.Server, router, cfg.ShutdownTimeoutDuration(), infra.Logger),
	}, nil
}

func buildRouter(infra *infrastructure.Infrastructure, a *api.API) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": a.Domain.Sessions.Active(),
			"devices":  a.Domain.Hub.Count(),
		})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			respond(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready"})
			return
		}
		respond(w, http.StatusOK, map[string]any{
			"status":    "ready",
			"reasoning": a.Domain.Reasoning.Available(),
			"notify":    a.Domain.Notifier.Enabled(),
		})
	})

	return router
}

func respond(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.api.Start(); err != nil {
		return err
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
