package main

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var statusUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// statusClient is one connected websocket consumer
type statusClient struct {
	id   string
	conn *websocket.Conn
	send chan interface{}
}

// StatusHub broadcasts per-epoch channel status records to all connected
// websocket clients. Slow clients have messages dropped rather than stalling
// the tracking channels.
type StatusHub struct {
	mu      sync.RWMutex
	clients map[string]*statusClient
}

// NewStatusHub creates an empty hub
func NewStatusHub() *StatusHub {
	return &StatusHub{clients: make(map[string]*statusClient)}
}

// Broadcast sends v to every connected client, dropping it for clients whose
// send queue is full
func (h *StatusHub) Broadcast(v interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- v:
		default:
		}
	}
}

// ClientCount returns the number of connected clients
func (h *StatusHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades an HTTP request and streams status records until
// the client disconnects
func (h *StatusHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := statusUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Status WebSocket: upgrade failed: %v", err)
		return
	}

	client := &statusClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan interface{}, 256),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	log.Printf("Status WebSocket: client %s connected from %s", client.id, r.RemoteAddr)

	go h.writePump(client)
	h.readPump(client)
}

func (h *StatusHub) writePump(c *statusClient) {
	for v := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(v); err != nil {
			return
		}
	}
}

// readPump discards client messages and tears the client down on disconnect
func (h *StatusHub) readPump(c *statusClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		close(c.send)
		c.conn.Close()
		log.Printf("Status WebSocket: client %s disconnected", c.id)
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
