// File: internal/transport/hub.go
package transport

import (
	"sync"
)

// Logger defines the logging interface used by the transport layer.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Hub fans events out to every client subscribed to a room. Slow
// clients never block a broadcast: a full outbound buffer drops the
// frame for that client only.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger Logger
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client to its room's subscriber set.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.RoomID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[client.RoomID] = clients
	}
	clients[client] = struct{}{}
	h.logger.Debug("client registered", "conn_id", client.ConnID, "room_id", client.RoomID)
}

// Unregister removes a client and closes its outbound queue. Safe to
// call more than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.RoomID]
	if !ok {
		return
	}
	if _, present := clients[client]; !present {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.RoomID)
	}
	close(client.send)
	h.logger.Debug("client unregistered", "conn_id", client.ConnID, "room_id", client.RoomID)
}

// Broadcast encodes the event once and queues it to every client in
// the room. excludeConnID skips one connection (e.g. the sender's own
// echo); pass "" to reach everyone.
func (h *Hub) Broadcast(roomID string, ev *Event, excludeConnID string) {
	frame, err := Encode(ev)
	if err != nil {
		h.logger.Error("failed to encode broadcast event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		if excludeConnID != "" && client.ConnID == excludeConnID {
			continue
		}
		select {
		case client.send <- frame:
		default:
			h.logger.Warn("dropping frame; client buffer full",
				"conn_id", client.ConnID, "room_id", roomID, "type", ev.Type)
		}
	}
}

// Send queues an event to a single connection in the room.
func (h *Hub) Send(roomID, connID string, ev *Event) {
	frame, err := Encode(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		if client.ConnID != connID {
			continue
		}
		select {
		case client.send <- frame:
		default:
			h.logger.Warn("dropping frame; client buffer full",
				"conn_id", connID, "room_id", roomID, "type", ev.Type)
		}
		return
	}
}

// RoomSize reports how many clients are subscribed to a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
