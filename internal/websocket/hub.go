package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	ClientID() string
	Send(data []byte) error
	Close() error
}

// Hub manages WebSocket connections organized by client (tenant). Admin
// consoles subscribe to a client to watch import, purge and recalculation
// jobs progress. It is safe for concurrent use.
type Hub struct {
	// clients maps client (tenant) ID to a map of connection ID to connection
	clients map[string]map[string]ClientInterface
	mu      sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[string]ClientInterface),
	}
}

// Register adds a connection to the hub under its client
func (h *Hub) Register(c ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientID := c.ClientID()
	connID := c.ID()

	if h.clients[clientID] == nil {
		h.clients[clientID] = make(map[string]ClientInterface)
	}

	h.clients[clientID][connID] = c

	log.Debug().
		Str("client_id", clientID).
		Str("conn_id", connID).
		Msg("WebSocket client registered")
}

// Unregister removes a connection from the hub
func (h *Hub) Unregister(c ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientID := c.ClientID()
	connID := c.ID()

	if conns, ok := h.clients[clientID]; ok {
		if _, exists := conns[connID]; exists {
			delete(conns, connID)

			// Clean up empty client maps
			if len(conns) == 0 {
				delete(h.clients, clientID)
			}

			log.Debug().
				Str("client_id", clientID).
				Str("conn_id", connID).
				Msg("WebSocket client unregistered")
		}
	}
}

// Broadcast sends an event to all connections watching a client
func (h *Hub) Broadcast(clientID string, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("client_id", clientID).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	conns, ok := h.clients[clientID]
	if !ok || len(conns) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy connections to avoid holding lock during send
	connsCopy := make([]ClientInterface, 0, len(conns))
	for _, c := range conns {
		connsCopy = append(connsCopy, c)
	}
	h.mu.RUnlock()

	// Send to each connection asynchronously
	for _, c := range connsCopy {
		go func(c ClientInterface) {
			if err := c.Send(data); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", clientID).
					Str("conn_id", c.ID()).
					Msg("Failed to send to client")
			}
		}(c)
	}

	log.Debug().
		Str("client_id", clientID).
		Str("event_type", event.Type).
		Int("conn_count", len(connsCopy)).
		Msg("Broadcast event")
}

// ConnCount returns the number of connections watching a client
func (h *Hub) ConnCount(clientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if conns, ok := h.clients[clientID]; ok {
		return len(conns)
	}
	return 0
}

// TotalConnCount returns the total number of connections across all clients
func (h *Hub) TotalConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
