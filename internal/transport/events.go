// File: internal/transport/events.go
package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iyunix/go-roomchat/internal/domain"
)

// EventType tags every frame crossing the websocket boundary.
type EventType string

const (
	// Client -> server.
	EventMessage      EventType = "message"
	EventTyping       EventType = "typing"
	EventThreadSelect EventType = "thread_select"
	EventAIRequest    EventType = "ai_request"
	EventStreamCancel EventType = "stream_cancel"

	// Server -> client.
	EventChange             EventType = "change"
	EventStreamStart        EventType = "stream_start"
	EventStreamReasoning    EventType = "stream_reasoning"
	EventStreamReasoningEnd EventType = "stream_reasoning_end"
	EventStreamContent      EventType = "stream_content"
	EventStreamEnd          EventType = "stream_end"
	EventStreamError        EventType = "stream_error"
	EventPresenceSync       EventType = "presence_sync"
	EventLimitExceeded      EventType = "limit_exceeded"
	EventError              EventType = "error"
)

// Event is the decoded form of a websocket frame. Exactly one payload
// pointer is set, matching Type. Frames are decoded once here; nothing
// downstream inspects raw JSON.
type Event struct {
	Type         EventType
	Message      *MessagePayload
	Change       *ChangePayload
	Typing       *TypingPayload
	ThreadSelect *ThreadSelectPayload
	Stream       *StreamPayload
	Presence     *PresencePayload
	Limit        *LimitPayload
	Error        *ErrorPayload
}

// MessagePayload carries a user-authored message inbound, or an AI
// request when Type is EventAIRequest.
type MessagePayload struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
}

// ChangePayload is the change record fanned out after a message is
// persisted. It is the wire twin of the sync engine's change event.
type ChangePayload struct {
	ID           string          `json:"id"`
	ThreadID     string          `json:"thread_id"`
	RoomID       string          `json:"room_id"`
	SenderName   string          `json:"sender_name"`
	SenderConnID string          `json:"sender_conn_id,omitempty"`
	IsAIResponse bool            `json:"is_ai_response,omitempty"`
	Content      string          `json:"content"`
	Reasoning    string          `json:"reasoning,omitempty"`
	Sources      []domain.Source `json:"sources,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type TypingPayload struct {
	Name   string `json:"name"`
	Typing bool   `json:"typing"`
}

type ThreadSelectPayload struct {
	ThreadID string `json:"thread_id"`
}

// StreamPayload is shared by every stream_* event; only the fields
// relevant to the concrete type are populated.
type StreamPayload struct {
	ThreadID    string `json:"thread_id"`
	MessageID   string `json:"message_id,omitempty"`
	Text        string `json:"text,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
	Message     string `json:"message,omitempty"`
}

type PresencePayload struct {
	Typing []string `json:"typing"`
}

type LimitPayload struct {
	Action  string    `json:"action"`
	Window  string    `json:"window"`
	Limit   int64     `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a raw frame into a typed Event. Unknown event types
// and malformed payloads are errors; callers drop the frame and log.
func Decode(data []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	ev := &Event{Type: env.Type}
	var payload interface{}

	switch env.Type {
	case EventMessage, EventAIRequest:
		ev.Message = &MessagePayload{}
		payload = ev.Message
	case EventChange:
		ev.Change = &ChangePayload{}
		payload = ev.Change
	case EventTyping:
		ev.Typing = &TypingPayload{}
		payload = ev.Typing
	case EventThreadSelect, EventStreamCancel:
		ev.ThreadSelect = &ThreadSelectPayload{}
		payload = ev.ThreadSelect
	case EventStreamStart, EventStreamReasoning, EventStreamReasoningEnd,
		EventStreamContent, EventStreamEnd, EventStreamError:
		ev.Stream = &StreamPayload{}
		payload = ev.Stream
	case EventPresenceSync:
		ev.Presence = &PresencePayload{}
		payload = ev.Presence
	case EventLimitExceeded:
		ev.Limit = &LimitPayload{}
		payload = ev.Limit
	case EventError:
		ev.Error = &ErrorPayload{}
		payload = ev.Error
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
	}
	return ev, nil
}

// Encode serializes an Event back into a frame.
func Encode(ev *Event) ([]byte, error) {
	var payload interface{}
	switch {
	case ev.Message != nil:
		payload = ev.Message
	case ev.Change != nil:
		payload = ev.Change
	case ev.Typing != nil:
		payload = ev.Typing
	case ev.ThreadSelect != nil:
		payload = ev.ThreadSelect
	case ev.Stream != nil:
		payload = ev.Stream
	case ev.Presence != nil:
		payload = ev.Presence
	case ev.Limit != nil:
		payload = ev.Limit
	case ev.Error != nil:
		payload = ev.Error
	}

	env := envelope{Type: ev.Type}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", ev.Type, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
