// File: internal/domain/thread.go
package domain

import "time"

// Thread represents a single conversation thread inside a room.
// Message ordering and streaming state are isolated per thread.
type Thread struct {
	ID        string `gorm:"primarykey"`
	RoomID    string `gorm:"index;not null"`
	Title     string // e.g. "Sprint planning"
	CreatedAt time.Time
	UpdatedAt time.Time
}
