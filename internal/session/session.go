// File: internal/session/session.go
package session

import (
	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/services/msgsync"
	"github.com/iyunix/go-roomchat/internal/services/presence"
	"github.com/iyunix/go-roomchat/internal/services/stream"
	"github.com/iyunix/go-roomchat/internal/transport"
)

// Session is the server-side view of one connected participant: their
// ordered message view and their picture of who else is typing.
type Session struct {
	room    *Room
	client  *transport.Client
	engine  *msgsync.Engine
	tracker *presence.Tracker
}

func newSession(room *Room, client *transport.Client, activeThread string) *Session {
	sess := &Session{room: room, client: client}
	sess.engine = msgsync.NewEngine(client.Identity, activeThread, room.logger)
	sess.tracker = presence.NewTracker(client.Identity.Name, presence.DefaultDebounce, func() {
		room.hub.Send(room.ID, client.ConnID, &transport.Event{
			Type:     transport.EventPresenceSync,
			Presence: &transport.PresencePayload{Typing: sess.tracker.Typing()},
		})
	}, room.logger)
	return sess
}

// Messages returns the ordered view of the session's active thread.
func (s *Session) Messages() []domain.Message {
	return s.engine.Snapshot()
}

// Typing returns who this participant currently sees as composing.
func (s *Session) Typing() []string {
	return s.tracker.Typing()
}

// LiveTurn reports the in-flight AI turn for a thread, if any.
func (s *Session) LiveTurn(threadID string) (stream.Turn, bool) {
	return s.room.machine.Snapshot(threadID)
}

// Identity returns the participant this session belongs to.
func (s *Session) Identity() domain.Identity {
	return s.client.Identity
}

func (s *Session) close() {
	s.tracker.Close()
}
