package sse

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Client represents a single connected SSE client. It is a channel the
// hub sends messages destined for this client on.
type Client chan []byte

// Hub manages the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[Client]bool
	broadcast  chan []byte
	register   chan Client
	unregister chan Client
	mu         sync.Mutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan Client),
		unregister: make(chan Client),
		clients:    make(map[Client]bool),
	}
}

// Run starts the hub's processing loop. It should run in its own
// goroutine.
func (h *Hub) Run() {
	log.Info("SSE hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debugf("SSE client registered. Total clients: %d", count)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debugf("SSE client unregistered. Total clients: %d", count)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				// Never block on a slow client; it just misses this message.
				select {
				case client <- message:
				default:
					log.Warn("SSE client channel full, skipping message")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// Broadcast sends a message to all registered clients. The caller is
// never blocked; the message is dropped if the hub is saturated.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
