package websocket

import (
	"context"
	"sync"
)

// AdminsRoom is the broadcast group for every connected admin dashboard.
const AdminsRoom = "admins"

// membershipRequest represents a room join/leave request
type membershipRequest struct {
	client *Client
	room   string
	join   bool // true = join, false = leave
}

// Hub owns the room registry: a map from room name to the set of connected
// clients in it. Membership is mutated only through the hub's channels, never
// directly by other components.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// rooms maps room name to the set of clients joined to it
	rooms map[string]map[*Client]struct{}

	register   chan *Client           // New connections
	unregister chan *Client           // Disconnections
	membership chan membershipRequest // Join/leave requests
}

// NewHub creates a new room hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		membership: make(chan membershipRequest, 512),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.membership:
			if req.join {
				h.joinRoom(req.client, req.room)
			} else {
				h.leaveRoom(req.client, req.room)
			}
		}
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join puts a client into a room. Joining twice is a no-op.
func (h *Hub) Join(client *Client, room string) {
	h.membership <- membershipRequest{client: client, room: room, join: true}
}

// Leave removes a client from a room
func (h *Hub) Leave(client *Client, room string) {
	h.membership <- membershipRequest{client: client, room: room, join: false}
}

// Broadcast sends a payload to every client in a room. Delivery is
// best-effort: clients with a full send buffer drop the payload.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.mu.RLock()
	members := h.rooms[room]
	for c := range members {
		c.SendRaw(payload)
	}
	h.mu.RUnlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients in a room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.addRoom(room)
}

func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)
}
