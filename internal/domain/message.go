// File: internal/domain/message.go
package domain

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Source is a single reference attached to an assistant message.
type Source struct {
	Title string `json:"title"`
	Ref   string `json:"ref,omitempty"`
}

// Message represents a single persisted message within a thread.
// Immutable once stored. The ID is the dedup key for the change feed,
// which may deliver the same record more than once and out of order.
type Message struct {
	ID         string    `gorm:"primarykey" json:"id"`
	ThreadID   string    `gorm:"index;not null" json:"thread_id"`
	RoomID     string    `gorm:"index;not null" json:"room_id"`
	Role       string    `gorm:"not null" json:"role"` // "user" or "assistant"
	SenderName string    `json:"sender_name"`
	Content    string    `gorm:"not null" json:"content"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Sources    []Source  `gorm:"serializer:json" json:"sources,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsAssistant reports whether the message is an AI response.
func (m *Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}
