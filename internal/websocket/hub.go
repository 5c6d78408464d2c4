package websocket

import (
	"sync"

	"docchat-client/internal/pkg/logger"
)

const hubModule = "WebSocketHub"

// Hub fans workspace snapshots out to every connected renderer.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// last is replayed to clients as they connect.
	last []byte

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			if h.last != nil {
				client.send <- h.last
			}
			h.mu.Unlock()
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{"user_id": client.userId})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info(hubModule, "Client unregistered", map[string]interface{}{"user_id": client.userId})
		}
	}
}

// Broadcast sends payload to every client. Slow clients are disconnected
// rather than allowed to block the workspace.
func (h *Hub) Broadcast(payload []byte) {
	var slow []*Client

	h.mu.Lock()
	h.last = payload
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.Unlock()

	for _, client := range slow {
		h.logger.Warn(hubModule, "Client queue full, disconnecting", map[string]interface{}{"user_id": client.userId})
		go func(c *Client) { h.unregister <- c }(client)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
