// File: internal/session/room.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/ratelimit"
	"github.com/iyunix/go-roomchat/internal/repository/message"
	"github.com/iyunix/go-roomchat/internal/repository/thread"
	"github.com/iyunix/go-roomchat/internal/services/ai"
	"github.com/iyunix/go-roomchat/internal/services/chat"
	"github.com/iyunix/go-roomchat/internal/services/msgsync"
	"github.com/iyunix/go-roomchat/internal/services/retrieval"
	"github.com/iyunix/go-roomchat/internal/services/stream"
	"github.com/iyunix/go-roomchat/internal/transport"
)

// Logger defines the logging interface used by the session layer.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

const (
	persistTimeout = 5 * time.Second
	historyTimeout = 10 * time.Second
	historyLimit   = 200
)

// Room coordinates every connected participant of one room: it owns
// the shared streaming machine, fans persisted changes out through the
// hub, and keeps one Session per connection.
type Room struct {
	ID string

	hub      *transport.Hub
	machine  *stream.Machine
	messages message.MessageRepository
	threads  thread.ThreadRepository
	limiter  *ratelimit.Limiter
	provider ai.Provider
	sources  retrieval.SourceProvider // nil disables citations
	contexts *chat.ContextBuilder
	logger   Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// RoomDeps bundles the collaborators a room needs.
type RoomDeps struct {
	Hub      *transport.Hub
	Machine  *stream.Machine
	Messages message.MessageRepository
	Threads  thread.ThreadRepository
	Limiter  *ratelimit.Limiter
	Provider ai.Provider
	Sources  retrieval.SourceProvider
	Contexts *chat.ContextBuilder
	Logger   Logger
}

func NewRoom(roomID string, deps RoomDeps) *Room {
	r := &Room{
		ID:       roomID,
		hub:      deps.Hub,
		machine:  deps.Machine,
		messages: deps.Messages,
		threads:  deps.Threads,
		limiter:  deps.Limiter,
		provider: deps.Provider,
		sources:  deps.Sources,
		contexts: deps.Contexts,
		logger:   deps.Logger,
		sessions: make(map[string]*Session),
	}
	// Surface a hung provider to clients as soon as the watchdog trips,
	// not when the stream's own timeout finally fires.
	r.machine.OnTimeout(func(turn stream.Turn) {
		r.broadcastStreamError(turn.ThreadID, turn)
		r.machine.Consume(turn.ThreadID)
	})
	return r
}

// Join creates a Session for a freshly registered connection and sends
// it the current presence view.
func (r *Room) Join(client *transport.Client, activeThread string) *Session {
	sess := newSession(r, client, activeThread)

	r.mu.Lock()
	r.sessions[client.ConnID] = sess
	r.mu.Unlock()

	r.hub.Send(r.ID, client.ConnID, &transport.Event{
		Type:     transport.EventPresenceSync,
		Presence: &transport.PresencePayload{Typing: sess.tracker.Typing()},
	})
	r.logger.Info("participant joined", "room_id", r.ID, "conn_id", client.ConnID, "name", client.Identity.Name)
	return sess
}

// Leave tears the connection's session down and clears its typing
// state from everyone else's view.
func (r *Room) Leave(client *transport.Client) {
	r.mu.Lock()
	sess, ok := r.sessions[client.ConnID]
	if ok {
		delete(r.sessions, client.ConnID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	sess.close()
	r.eachSession(func(other *Session) {
		if other.client.ConnID != client.ConnID {
			other.tracker.Leave(client.Identity.Name)
		}
	})
	r.logger.Info("participant left", "room_id", r.ID, "conn_id", client.ConnID)
}

// HandleEvent dispatches one decoded inbound frame.
func (r *Room) HandleEvent(client *transport.Client, ev *transport.Event) {
	r.mu.Lock()
	sess, ok := r.sessions[client.ConnID]
	r.mu.Unlock()
	if !ok {
		r.logger.Warn("event from unknown session", "conn_id", client.ConnID, "type", ev.Type)
		return
	}

	switch ev.Type {
	case transport.EventMessage:
		r.sendMessage(sess, ev.Message)
	case transport.EventAIRequest:
		go r.runAITurn(sess, ev.Message)
	case transport.EventTyping:
		r.handleTyping(sess, ev.Typing)
	case transport.EventThreadSelect:
		sess.engine.SetActiveThread(ev.ThreadSelect.ThreadID)
	case transport.EventStreamCancel:
		r.cancelTurn(sess, ev.ThreadSelect.ThreadID)
	default:
		r.logger.Debug("ignoring inbound event", "conn_id", client.ConnID, "type", ev.Type)
	}
}

// sendMessage gates on the limiter, persists, optimistically appends
// to the sender's view, and fans the change record out to the room.
func (r *Room) sendMessage(sess *Session, payload *transport.MessagePayload) {
	identity := sess.client.Identity

	res, err := r.limiter.TryConsume(context.Background(), identity.Name, r.ID, ratelimit.ActionMessage, identity.Tier)
	if err != nil {
		r.logger.Error("limiter unavailable", "name", identity.Name, "error", err)
		r.sendError(sess, "message could not be sent, try again")
		return
	}
	if !res.Allowed {
		r.sendLimitExceeded(sess, res)
		return
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		ThreadID:   payload.ThreadID,
		RoomID:     r.ID,
		Role:       domain.RoleUser,
		SenderName: identity.Name,
		Content:    payload.Content,
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if _, err := r.messages.Create(ctx, &msg); err != nil {
		r.logger.Error("failed to persist message", "thread_id", msg.ThreadID, "error", err)
		r.sendError(sess, "message could not be sent, try again")
		return
	}
	if err := r.threads.TouchUpdatedAt(ctx, msg.ThreadID); err != nil {
		r.logger.Warn("failed to touch thread", "thread_id", msg.ThreadID, "error", err)
	}

	// Sending a message is an implicit typing stop.
	sess.engine.Append(msg)
	r.eachSession(func(other *Session) {
		if other.client.ConnID != identity.ConnID {
			other.tracker.SetTyping(identity.Name, false)
		}
	})

	r.fanOutChange(changeEventFor(msg, identity.ConnID))
}

// fanOutChange ingests a change record into every session's engine and
// broadcasts the wire frame. Duplicate deliveries and the sender's own
// echo are absorbed by each engine.
func (r *Room) fanOutChange(ce msgsync.ChangeEvent) {
	r.eachSession(func(sess *Session) {
		accepted, reason := sess.engine.Ingest(ce)
		if !accepted && reason != msgsync.DropOwnEcho && reason != msgsync.DropCrossThread {
			r.logger.Debug("change dropped", "conn_id", sess.client.ConnID, "id", ce.ID, "reason", reason)
		}
	})

	r.hub.Broadcast(r.ID, &transport.Event{
		Type:   transport.EventChange,
		Change: changePayloadFor(ce),
	}, "")
}

func (r *Room) handleTyping(sess *Session, payload *transport.TypingPayload) {
	name := sess.client.Identity.Name
	r.eachSession(func(other *Session) {
		if other.client.ConnID != sess.client.ConnID {
			other.tracker.SetTyping(name, payload.Typing)
		}
	})
	r.hub.Broadcast(r.ID, &transport.Event{
		Type:   transport.EventTyping,
		Typing: &transport.TypingPayload{Name: name, Typing: payload.Typing},
	}, sess.client.ConnID)
}

func (r *Room) cancelTurn(sess *Session, threadID string) {
	if !r.machine.Cancel(threadID) {
		return
	}
	r.hub.Broadcast(r.ID, &transport.Event{
		Type:   transport.EventStreamError,
		Stream: &transport.StreamPayload{ThreadID: threadID, Message: "cancelled", Recoverable: true},
	}, "")
	r.machine.Consume(threadID)
}

func (r *Room) sendLimitExceeded(sess *Session, res *ratelimit.Result) {
	r.hub.Send(r.ID, sess.client.ConnID, &transport.Event{
		Type: transport.EventLimitExceeded,
		Limit: &transport.LimitPayload{
			Action:  string(res.Action),
			Window:  string(res.Window),
			Limit:   int64(res.Limit),
			ResetAt: res.ResetAt,
		},
	})
}

func (r *Room) sendError(sess *Session, msg string) {
	r.hub.Send(r.ID, sess.client.ConnID, &transport.Event{
		Type:  transport.EventError,
		Error: &transport.ErrorPayload{Message: msg},
	})
}

func (r *Room) eachSession(fn func(*Session)) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	for _, sess := range sessions {
		fn(sess)
	}
}

func changeEventFor(msg domain.Message, senderConnID string) msgsync.ChangeEvent {
	return msgsync.ChangeEvent{
		ID:           msg.ID,
		ThreadID:     msg.ThreadID,
		RoomID:       msg.RoomID,
		SenderName:   msg.SenderName,
		SenderConnID: senderConnID,
		IsAIResponse: msg.IsAssistant(),
		Content:      msg.Content,
		Reasoning:    msg.Reasoning,
		Sources:      msg.Sources,
		CreatedAt:    msg.CreatedAt,
	}
}

func changePayloadFor(ce msgsync.ChangeEvent) *transport.ChangePayload {
	return &transport.ChangePayload{
		ID:           ce.ID,
		ThreadID:     ce.ThreadID,
		RoomID:       ce.RoomID,
		SenderName:   ce.SenderName,
		SenderConnID: ce.SenderConnID,
		IsAIResponse: ce.IsAIResponse,
		Content:      ce.Content,
		Reasoning:    ce.Reasoning,
		Sources:      ce.Sources,
		CreatedAt:    ce.CreatedAt,
	}
}
