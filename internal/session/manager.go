// File: internal/session/manager.go
package session

import "sync"

// Manager hands out one Room per room id, creating rooms lazily from
// the injected dependency factory.
type Manager struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	depsFor func(roomID string) RoomDeps
}

func NewManager(depsFor func(roomID string) RoomDeps) *Manager {
	return &Manager{
		rooms:   make(map[string]*Room),
		depsFor: depsFor,
	}
}

// Room returns the live Room for an id, creating it on first use.
func (m *Manager) Room(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[roomID]; ok {
		return room
	}
	room := NewRoom(roomID, m.depsFor(roomID))
	m.rooms[roomID] = room
	return room
}
