package gateway

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/JaimeStill/mentor/pkg/handlers"
	"github.com/JaimeStill/mentor/pkg/middleware"
)

// Handler upgrades GET /ws?client=<id> to a websocket connection.
type Handler struct {
	hub      *Hub
	cfg      *Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler. Origins are checked against the CORS policy.
func NewHandler(hub *Hub, cfg *Config, cors *middleware.CORSConfig, logger *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		cfg:    cfg,
		logger: logger.With("handler", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return cors.AllowsOrigin(r.Header.Get("Origin"))
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("client")
	if id == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("client query parameter is required"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "client", id, "error", err)
		return
	}

	c := newClient(id, conn, h.hub, h.cfg, h.hub.logger)
	h.hub.register(c)

	go c.writePump()
	go c.readPump()
}
