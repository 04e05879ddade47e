// File: internal/domain/room.go
package domain

import "time"

// Room is a shared space containing one or more threads and a set of
// participants.
type Room struct {
	ID        string `gorm:"primarykey"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
