package gateway

import (
	"log/slog"
	"sync"

	"github.com/JaimeStill/mentor/pkg/lifecycle"
)

// Hub tracks one connection per client id. A reconnecting client replaces
// its previous connection, which is closed. Sessions observe a connection's
// end through Client.Done.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("system", "gateway"),
		clients: make(map[string]*Client),
	}
}

// Client returns the live connection for id.
func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Start closes every connection on shutdown.
func (h *Hub) Start(lc *lifecycle.Coordinator) {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		h.CloseAll()
	})
}

// CloseAll closes every connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	prev := h.clients[c.id]
	h.clients[c.id] = c
	h.mu.Unlock()

	if prev != nil {
		h.logger.Info("client replaced", "client", c.id)
		prev.Close()
	}
	h.logger.Info("client connected", "client", c.id)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	h.logger.Info("client disconnected", "client", c.id)
}
