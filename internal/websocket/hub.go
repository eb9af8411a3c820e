// Package websocket pushes journaled events to the connected clients of a user.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"spx-studio/internal/logging"
	"spx-studio/internal/metrics"

	"github.com/gorilla/websocket"
)

// NewUpgrader accepts connections from the listed origins. Requests without
// an Origin header (non-browser clients) and a "*" entry are always allowed.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

type Hub struct {
	clients    map[int64]map[*Client]bool
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		}
	}
}

// Attach registers client unless the hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	metrics.WebsocketConnected()
	logging.Debug("websocket client registered", logging.Int64("user_id", client.UserID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userClients, ok := h.clients[client.UserID]; ok {
		if _, ok := userClients[client]; ok {
			delete(userClients, client)
			close(client.send)
			if len(userClients) == 0 {
				delete(h.clients, client.UserID)
			}
			metrics.WebsocketDisconnected()
			logging.Debug("websocket client unregistered", logging.Int64("user_id", client.UserID))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, userClients := range h.clients {
		for client := range userClients {
			close(client.send)
			metrics.WebsocketDisconnected()
		}
		delete(h.clients, userID)
	}
}

// ClientCount reports how many connections userID currently holds.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) PublishEvent(userID int64, eventData []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userClients, ok := h.clients[userID]; ok {
		for client := range userClients {
			select {
			case client.send <- eventData:
			default:
				logging.Warn("websocket send buffer full, dropping message", logging.Int64("user_id", userID))
			}
		}
	}
}

// Publish wraps payload in the same envelope the event journal stores.
func (h *Hub) Publish(userID int64, eventType string, payload interface{}) {
	eventBytes, err := json.Marshal(map[string]interface{}{
		"event_type": eventType,
		"payload":    payload,
	})
	if err != nil {
		logging.Error("failed to marshal websocket event", logging.String("event_type", eventType), logging.Err(err))
		return
	}
	h.PublishEvent(userID, eventBytes)
}
