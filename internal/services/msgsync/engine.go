// File: internal/services/msgsync/engine.go
package msgsync

import (
	"sort"
	"sync"

	"github.com/iyunix/go-roomchat/internal/domain"
)

// Engine maintains a single, deduplicated, time-ordered view of a
// thread's messages from the at-least-once change feed. One engine is
// owned by each connected session; threads are isolated by key, so
// several rooms can be open without cross-talk.
type Engine struct {
	mu           sync.Mutex
	self         domain.Identity
	activeThread string
	seen         map[string]map[string]struct{}      // threadID -> message IDs
	byThread     map[string]map[string]domain.Message // threadID -> ID -> message
	logger       Logger
}

// NewEngine creates a sync engine for one participant session.
func NewEngine(self domain.Identity, activeThread string, logger Logger) *Engine {
	return &Engine{
		self:         self,
		activeThread: activeThread,
		seen:         make(map[string]map[string]struct{}),
		byThread:     make(map[string]map[string]domain.Message),
		logger:       logger,
	}
}

// SetActiveThread switches the thread this session is viewing. State
// for other threads is kept; events for them keep being discarded
// until they become active.
func (e *Engine) SetActiveThread(threadID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeThread = threadID
}

// ActiveThread returns the thread this session is currently viewing.
func (e *Engine) ActiveThread() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeThread
}

// Ingest consumes one change-feed event. It returns whether the event
// was added to the view and, if not, why it was dropped. Bad input is
// dropped and logged, never an error: synchronization must stay live
// even if a single event is corrupt.
func (e *Engine) Ingest(ev ChangeEvent) (bool, DropReason) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.ID == "" || ev.Content == "" {
		e.logger.Warn("dropping malformed change event",
			"thread_id", ev.ThreadID, "has_id", ev.ID != "")
		return false, DropMalformed
	}

	if ev.ThreadID != e.activeThread {
		return false, DropCrossThread
	}

	if e.isSeen(ev.ThreadID, ev.ID) {
		return false, DropDuplicate
	}

	// The caller's own just-sent message is already shown
	// optimistically; the feed echo must not display it twice.
	// Connection ID is the preferred key; display names can collide.
	if !ev.IsAIResponse && e.isOwnEcho(ev) {
		e.markSeen(ev.ThreadID, ev.ID)
		return false, DropOwnEcho
	}

	e.markSeen(ev.ThreadID, ev.ID)
	msgs := e.byThread[ev.ThreadID]
	if msgs == nil {
		msgs = make(map[string]domain.Message)
		e.byThread[ev.ThreadID] = msgs
	}
	msgs[ev.ID] = ev.Message()
	return true, DropNone
}

// Append inserts the caller's own message directly into the view and
// marks it seen, so the later feed echo dedupes against it.
func (e *Engine) Append(msg domain.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.ID == "" {
		return
	}
	if e.isSeen(msg.ThreadID, msg.ID) {
		return
	}
	e.markSeen(msg.ThreadID, msg.ID)
	msgs := e.byThread[msg.ThreadID]
	if msgs == nil {
		msgs = make(map[string]domain.Message)
		e.byThread[msg.ThreadID] = msgs
	}
	msgs[msg.ID] = msg
}

// Snapshot returns the ordered message list for the active thread.
// The list is recomputed on each call, sorted ascending by CreatedAt
// with the ID as tie-break, independent of event arrival order.
func (e *Engine) Snapshot() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.activeThread)
}

// SnapshotThread returns the ordered message list for one thread.
func (e *Engine) SnapshotThread(threadID string) []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(threadID)
}

func (e *Engine) snapshotLocked(threadID string) []domain.Message {
	msgs := e.byThread[threadID]
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DropThread prunes all state for a thread on teardown. The seen-set
// otherwise grows monotonically per thread.
func (e *Engine) DropThread(threadID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seen, threadID)
	delete(e.byThread, threadID)
}

func (e *Engine) isOwnEcho(ev ChangeEvent) bool {
	if ev.SenderConnID != "" && e.self.ConnID != "" {
		return ev.SenderConnID == e.self.ConnID
	}
	return ev.SenderName == e.self.Name
}

func (e *Engine) isSeen(threadID, id string) bool {
	ids := e.seen[threadID]
	if ids == nil {
		return false
	}
	_, ok := ids[id]
	return ok
}

func (e *Engine) markSeen(threadID, id string) {
	ids := e.seen[threadID]
	if ids == nil {
		ids = make(map[string]struct{})
		e.seen[threadID] = ids
	}
	ids[id] = struct{}{}
}
