// File: internal/services/stream/machine.go
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle state of one in-flight AI turn.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseStarted            Phase = "started"
	PhaseReasoningStreaming Phase = "reasoning_streaming"
	PhaseReasoningComplete  Phase = "reasoning_complete"
	PhaseContentStreaming   Phase = "content_streaming"
	PhaseCompleted          Phase = "completed"
	PhaseCancelled          Phase = "cancelled"
	PhaseError              Phase = "error"
)

// Terminal reports whether the phase ends a turn.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled || p == PhaseError
}

// Live reports whether a turn in this phase still accepts chunks.
func (p Phase) Live() bool {
	return p != PhaseIdle && !p.Terminal()
}

// Logger defines the logging interface used by the state machine.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Turn is the transient state of one AI response as it streams.
// The MessageID is a placeholder; the persisted message that arrives
// through the sync engine after completion supersedes it.
type Turn struct {
	ThreadID      string
	MessageID     string
	ReasoningText string
	ContentText   string
	Phase         Phase
	StartedAt     time.Time
	Err           error

	lastEventAt time.Time
}

// Machine owns the lifecycle of at most one in-flight AI turn per
// thread. Duplicate start signals from redundant transport paths are
// tolerated as no-ops rather than errors. An inactivity watchdog
// fails turns that stop receiving chunks.
type Machine struct {
	mu        sync.Mutex
	config    *Config
	turns     map[string]*Turn
	logger    Logger
	stopCh    chan struct{}
	onTimeout func(Turn)
}

// NewMachine creates a streaming state machine and starts its watchdog.
func NewMachine(config *Config, logger Logger) (*Machine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}
	m := &Machine{
		config: config,
		turns:  make(map[string]*Turn),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	go m.watchdogLoop()
	return m, nil
}

// Close stops the watchdog goroutine.
func (m *Machine) Close() {
	close(m.stopCh)
}

// OnTimeout registers a callback invoked, outside the machine's lock,
// for every turn the watchdog fails. Lets the caller broadcast the
// failure the moment it is detected instead of waiting for the next
// rejected chunk.
func (m *Machine) OnTimeout(fn func(Turn)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTimeout = fn
}

// Start begins a turn for the thread. Returns false as a no-op when a
// live turn already exists: at most one StreamingTurn per thread.
func (m *Machine) Start(threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.turns[threadID]; ok && t.Phase.Live() {
		m.logger.Debug("duplicate start ignored", "thread_id", threadID)
		return false
	}

	now := time.Now()
	m.turns[threadID] = &Turn{
		ThreadID:    threadID,
		MessageID:   "pending-" + uuid.NewString(),
		ContentText: m.config.ThinkingPlaceholder,
		Phase:       PhaseStarted,
		StartedAt:   now,
		lastEventAt: now,
	}
	m.logger.Info("stream turn started", "thread_id", threadID)
	return true
}

// ReasoningChunk appends reasoning text to the turn identified by
// messageID. Valid while the turn is in Started or ReasoningStreaming;
// anything else is ignored.
func (m *Machine) ReasoningChunk(threadID, messageID, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.ownedTurn(threadID, messageID)
	if t == nil {
		return false
	}
	if t.Phase != PhaseStarted && t.Phase != PhaseReasoningStreaming {
		return false
	}
	t.ReasoningText += text
	t.Phase = PhaseReasoningStreaming
	t.lastEventAt = time.Now()
	return true
}

// ReasoningEnd finalizes the reasoning text. A non-empty text replaces
// whatever accumulated from chunks.
func (m *Machine) ReasoningEnd(threadID, messageID, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.ownedTurn(threadID, messageID)
	if t == nil {
		return false
	}
	if text != "" {
		t.ReasoningText = text
	}
	t.Phase = PhaseReasoningComplete
	t.lastEventAt = time.Now()
	return true
}

// ContentChunk appends content text. The first chunk replaces the
// thinking placeholder.
func (m *Machine) ContentChunk(threadID, messageID, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.ownedTurn(threadID, messageID)
	if t == nil {
		return false
	}
	if t.Phase != PhaseContentStreaming {
		t.ContentText = ""
	}
	t.ContentText += text
	t.Phase = PhaseContentStreaming
	t.lastEventAt = time.Now()
	return true
}

// End completes the turn. The placeholder is cleared rather than
// finalized in place: the persisted message arriving through the sync
// engine is the single source of truth, which rules out the duplicate
// where a locally-finalized stream message and the stored one coexist.
func (m *Machine) End(threadID, messageID, finalText, finalReasoning string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.ownedTurn(threadID, messageID)
	if t == nil {
		return false
	}
	_ = finalText
	_ = finalReasoning
	t.ContentText = ""
	t.ReasoningText = ""
	t.Phase = PhaseCompleted
	t.lastEventAt = time.Now()
	m.logger.Info("stream turn completed", "thread_id", threadID)
	return true
}

// Cancel aborts the turn. Partial output is discarded: it is not
// trustworthy enough to keep as a real message. Idempotent; cancelling
// a finished or missing turn is a no-op.
func (m *Machine) Cancel(threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.liveTurn(threadID)
	if t == nil {
		return false
	}
	t.ContentText = ""
	t.ReasoningText = ""
	t.Phase = PhaseCancelled
	t.lastEventAt = time.Now()
	m.logger.Info("stream turn cancelled", "thread_id", threadID)
	return true
}

// Fail moves the turn to the Error phase. Surfaced as recoverable: the
// caller may retry by re-triggering the AI turn.
func (m *Machine) Fail(threadID, messageID string, cause error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.ownedTurn(threadID, messageID)
	if t == nil {
		return false
	}
	t.Phase = PhaseError
	t.Err = cause
	t.lastEventAt = time.Now()
	m.logger.Warn("stream turn failed", "thread_id", threadID, "error", cause)
	return true
}

// Snapshot returns a copy of the thread's turn, or false when the
// thread is idle.
func (m *Machine) Snapshot(threadID string) (Turn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.turns[threadID]
	if !ok {
		return Turn{}, false
	}
	return *t, true
}

// Consume releases a terminal turn, returning the thread to Idle and
// freeing its slot for the next start.
func (m *Machine) Consume(threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.turns[threadID]
	if !ok || !t.Phase.Terminal() {
		return false
	}
	delete(m.turns, threadID)
	return true
}

// liveTurn returns the thread's turn if it still accepts events.
// Events for a thread without a live turn are ignored, which keeps
// several open threads free of cross-talk.
func (m *Machine) liveTurn(threadID string) *Turn {
	t, ok := m.turns[threadID]
	if !ok || !t.Phase.Live() {
		return nil
	}
	return t
}

// ownedTurn returns the thread's live turn only when messageID matches
// the one handed out at Start. A cancelled stream whose provider
// goroutine is still draining deltas holds a stale messageID, so its
// events cannot leak into a turn started afterwards for the same
// thread.
func (m *Machine) ownedTurn(threadID, messageID string) *Turn {
	t := m.liveTurn(threadID)
	if t == nil || t.MessageID != messageID {
		return nil
	}
	return t
}

// watchdogLoop periodically fails live turns that stopped receiving
// chunks, so a dropped provider connection surfaces as a retryable
// error instead of a stream stuck in Started.
func (m *Machine) watchdogLoop() {
	ticker := time.NewTicker(m.config.SweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Machine) sweep() {
	m.mu.Lock()
	now := time.Now()
	var expired []Turn
	for threadID, t := range m.turns {
		if !t.Phase.Live() {
			continue
		}
		if now.Sub(t.lastEventAt) > m.config.IdleTimeout {
			t.Phase = PhaseError
			t.Err = NewTimeoutError(threadID, m.config.IdleTimeout.String())
			t.lastEventAt = now
			expired = append(expired, *t)
			m.logger.Warn("stream turn timed out", "thread_id", threadID,
				"idle_timeout", m.config.IdleTimeout.String())
		}
	}
	notify := m.onTimeout
	m.mu.Unlock()

	if notify == nil {
		return
	}
	for _, turn := range expired {
		notify(turn)
	}
}
