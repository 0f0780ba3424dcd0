package distributed

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Coordinator fans analysis progress out to remote observers over
// WebSocket, mirroring the teacher's WebSocketServer/WebSocketBroadcast
// (internal/network/websocket_server.go): an upgrader accepts
// connections, each registered under its own id, and a broadcast writes
// to every live connection, pruning any that error.
type Coordinator struct {
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

// NewCoordinator builds a Coordinator with no connections yet.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		conns:    make(map[string]*websocket.Conn),
	}
}

// ServeHTTP upgrades an incoming HTTP request to a WebSocket connection
// and registers it to receive progress broadcasts.
func (c *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.New().String()
	c.mu.Lock()
	c.conns[id] = conn
	c.mu.Unlock()
}

// BroadcastProgress sends a one-line progress message, tagged with the
// originating job id, to every connected observer. A connection that
// errors on write is assumed dead and dropped.
func (c *Coordinator) BroadcastProgress(job uuid.UUID, msg string) {
	line := fmt.Sprintf("[%s] %s", job, msg)

	c.mu.RLock()
	conns := make(map[string]*websocket.Conn, len(c.conns))
	for id, conn := range c.conns {
		conns[id] = conn
	}
	c.mu.RUnlock()

	var dead []string
	for id, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return
	}
	c.mu.Lock()
	for _, id := range dead {
		delete(c.conns, id)
	}
	c.mu.Unlock()
}

// Close drops every tracked connection, closing each one.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, conn := range c.conns {
		_ = conn.Close()
		delete(c.conns, id)
	}
}
