package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"seha-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is the wire frame exchanged with connected clients.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents one socket connection. Identity is the identity resolved
// at handshake time, or nil for anonymous connections; privileged actions
// always check it, never claimed roles.
type Client struct {
	ID       string
	Identity *services.Identity
	Conn     *websocket.Conn
	Send     chan []byte
	rooms    map[string]bool
	mu       sync.RWMutex // Protects rooms map and conn writes
}

// NewClient creates a client for an upgraded connection.
func NewClient(conn *websocket.Conn, identity *services.Identity) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		rooms:    make(map[string]bool),
	}
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// InRoom reports whether the client has joined a room.
func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

// Rooms returns a copy of the client's room names.
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// IsAdmin reports whether the connect-time identity carries admin capability.
func (c *Client) IsAdmin() bool {
	return c.Identity != nil && c.Identity.IsAdmin()
}

// WriteLoop drains the Send channel onto the connection and keeps it alive
// with pings.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case msg, ok := <-c.Send:
			if !ok {
				c.close()
				return
			}
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.Conn.WriteMessage(websocket.TextMessage, msg)
			c.mu.Unlock()
		case <-ticker.C:
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.Conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			c.mu.Unlock()
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	_ = c.Conn.Close()
	c.mu.Unlock()
}

// SendRaw queues a payload without blocking; a full buffer drops it.
func (c *Client) SendRaw(msg []byte) {
	select {
	case c.Send <- msg:
	default:
		// Channel full, message dropped
	}
}

// SendEvent marshals and queues an event frame.
func (c *Client) SendEvent(event string, data any) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		return
	}
	c.SendRaw(payload)
}

func marshalEvent(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Event{Event: event, Data: raw})
}
