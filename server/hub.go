package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"arbflow/logger"
	"arbflow/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is same-host or reverse-proxied; origin policy is left to the
	// proxy layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub pushes each published batch to every connected websocket client. It is
// wired into the batch fanout as a sink, so clients see exactly the batches
// the other sinks see.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *logger.Log
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		log:     logger.GetLogger(),
	}
}

// WriteBatch implements the batch sink contract. A client that cannot keep
// up is dropped rather than allowed to stall the broadcast.
func (h *Hub) WriteBatch(_ context.Context, batch models.OpportunityBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.WithComponent("ws_hub").WithError(err).Debug("dropping slow websocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.WithComponent("ws_hub").WithFields(logger.Fields{"clients": n}).Debug("websocket client connected")
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		conn.Close()
		delete(h.clients, conn)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.WithComponent("ws_hub").WithFields(logger.Fields{"clients": n}).Debug("websocket client disconnected")
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serve upgrades the request and keeps the connection registered until the
// client goes away. Inbound messages are read and discarded; the stream is
// push-only.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithComponent("ws_hub").WithError(err).Debug("websocket upgrade failed")
		return
	}

	h.add(conn)
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
