package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Client is one connected websocket subscriber. Writes go through the
// client's mutex because gorilla/websocket allows only one writer.
type Client struct {
	ID          string
	conn        *websocket.Conn
	ConnectedAt time.Time
	RemoteAddr  string

	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, remoteAddr string) *Client {
	id, err := gonanoid.New(12)
	if err != nil {
		id = time.Now().Format("20060102150405.000000000")
	}
	return &Client{
		ID:          id,
		conn:        conn,
		ConnectedAt: time.Now(),
		RemoteAddr:  remoteAddr,
	}
}

// WriteJSON serializes one message to the client.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ClientRegistry tracks connected websocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

// Add registers a client.
func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ID] = client
}

// Remove drops a client by id.
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

// All snapshots the current clients.
func (r *ClientRegistry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll disconnects every client.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
