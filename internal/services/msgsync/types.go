// File: internal/services/msgsync/types.go
package msgsync

import (
	"time"

	"github.com/iyunix/go-roomchat/internal/domain"
)

// Logger defines the logging interface used by the sync engine.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// ChangeEvent is one raw change-feed notification. The feed is
// at-least-once: the same logical message may arrive more than once
// and records may arrive out of creation order.
type ChangeEvent struct {
	ID           string          `json:"id"`
	ThreadID     string          `json:"thread_id"`
	RoomID       string          `json:"room_id"`
	SenderName   string          `json:"sender_name"`
	SenderConnID string          `json:"sender_conn_id,omitempty"`
	IsAIResponse bool            `json:"is_ai_response"`
	Content      string          `json:"content"`
	Reasoning    string          `json:"reasoning,omitempty"`
	Sources      []domain.Source `json:"sources,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Message converts the event payload into the domain message it carries.
func (e *ChangeEvent) Message() domain.Message {
	role := domain.RoleUser
	if e.IsAIResponse {
		role = domain.RoleAssistant
	}
	return domain.Message{
		ID:         e.ID,
		ThreadID:   e.ThreadID,
		RoomID:     e.RoomID,
		Role:       role,
		SenderName: e.SenderName,
		Content:    e.Content,
		Reasoning:  e.Reasoning,
		Sources:    e.Sources,
		CreatedAt:  e.CreatedAt,
	}
}

// DropReason classifies why an ingested event was discarded. All drops
// are silent recoveries, not errors; the engine must stay live no
// matter what the feed delivers.
type DropReason string

const (
	DropNone        DropReason = ""
	DropDuplicate   DropReason = "duplicate"
	DropCrossThread DropReason = "cross_thread"
	DropOwnEcho     DropReason = "own_echo"
	DropMalformed   DropReason = "malformed"
)
