package server

import (
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/voxhost/voxhost/internal/manager"
)

// EventHub broadcasts manager notifications to connected UI clients over a
// websocket. It implements manager.Notifier.
type EventHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// The daemon binds to loopback; the UI shell is the only
			// expected origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Notify sends the notification to every connected client. Send failures
// drop the client; a UI that went away mid-broadcast is routine.
func (h *EventHub) Notify(n manager.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(n); err != nil {
			log.Debug("Dropping event client", "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the
// client disconnects. Clients only listen; inbound messages are discarded.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	log.Debug("Event client connected", "remote", r.RemoteAddr)

	// Read loop exists only to detect the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
		log.Debug("Event client disconnected", "remote", r.RemoteAddr)
	}()
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
