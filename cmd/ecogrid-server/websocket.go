package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/daniacca/ecogrid/internal/ecosim"
	"github.com/gorilla/websocket"
)

// WebSocketHub pushes generation events to connected viewers. It
// implements ecosim.Notifier; the engine publishes, the hub fans out.
type WebSocketHub struct {
	id         string
	mu         sync.RWMutex
	clients    map[*websocket.Conn]bool
	upgrader   websocket.Upgrader
	broadcast  chan ecosim.GenerationEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewWebSocketHub creates a hub and starts its broadcaster goroutine.
func NewWebSocketHub(id string) *WebSocketHub {
	hub := &WebSocketHub{
		id:         id,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan ecosim.GenerationEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	hub.wg.Add(1)
	go hub.run()
	return hub
}

// ID returns the notifier id.
func (h *WebSocketHub) ID() string { return h.id }

// Notify queues one event for broadcast.
func (h *WebSocketHub) Notify(ctx context.Context, event ecosim.GenerationEvent) error {
	select {
	case h.broadcast <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return fmt.Errorf("websocket hub is closed")
	}
}

// HandleWS upgrades an HTTP request to a WebSocket subscription.
func (h *WebSocketHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Read loop only to observe the close handshake; inbound messages
	// are discarded.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			payload, err := event.JSON()
			if err != nil {
				continue
			}

			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			var toRemove []*websocket.Conn
			for _, conn := range conns {
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					conn.Close()
					toRemove = append(toRemove, conn)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, conn := range toRemove {
					delete(h.clients, conn)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Close disconnects all clients and stops the broadcaster.
func (h *WebSocketHub) Close() error {
	close(h.done)

	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}
