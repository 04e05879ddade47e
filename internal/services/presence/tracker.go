// File: internal/services/presence/tracker.go
package presence

import (
	"sort"
	"sync"
	"time"
)

// DefaultDebounce is how long after the last keystroke an identity is
// still considered typing.
const DefaultDebounce = 1500 * time.Millisecond

// Logger defines the logging interface used by the tracker.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

type entry struct {
	typing         bool
	lastActivityAt time.Time
	seq            uint64
	timer          *time.Timer
}

// Tracker maintains a best-effort, self-expiring view of who is
// composing a message in a room. Presence is inherently lossy;
// dropped updates degrade to "no one typing" rather than an error.
type Tracker struct {
	mu       sync.Mutex
	self     string
	debounce time.Duration
	entries  map[string]*entry
	onChange func()
	logger   Logger
}

// NewTracker creates a tracker for one session. The caller's own
// identity is always excluded from the derived list. onChange may be
// nil; when set it fires after every visible change.
func NewTracker(self string, debounce time.Duration, onChange func(), logger Logger) *Tracker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Tracker{
		self:     self,
		debounce: debounce,
		entries:  make(map[string]*entry),
		onChange: onChange,
		logger:   logger,
	}
}

// SetTyping records a keystroke or an explicit stop for an identity.
// A true restarts the debounce timer; expiry with no further activity
// emits the implicit stop. An explicit false (message sent) cancels
// the pending timer immediately.
func (t *Tracker) SetTyping(identity string, typing bool) {
	if identity == "" {
		return
	}
	t.mu.Lock()

	e := t.entries[identity]
	if e == nil {
		if !typing {
			t.mu.Unlock()
			return
		}
		e = &entry{}
		t.entries[identity] = e
	}

	changed := e.typing != typing
	e.typing = typing
	e.lastActivityAt = time.Now()
	e.seq++

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if typing {
		seq := e.seq
		e.timer = time.AfterFunc(t.debounce, func() {
			t.expire(identity, seq)
		})
	}
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

// expire clears an identity whose debounce window lapsed with no
// further activity. The sequence check discards stale timers.
func (t *Tracker) expire(identity string, seq uint64) {
	t.mu.Lock()
	e := t.entries[identity]
	if e == nil || e.seq != seq || !e.typing {
		t.mu.Unlock()
		return
	}
	e.typing = false
	e.timer = nil
	t.mu.Unlock()

	t.notify()
}

// Typing returns a stable-ordered list of identities currently
// composing, with the caller's own identity excluded.
func (t *Tracker) Typing() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.entries))
	for identity, e := range t.entries {
		if e.typing && identity != t.self {
			out = append(out, identity)
		}
	}
	sort.Strings(out)
	return out
}

// SyncReplace swaps the local view wholesale from a transport presence
// sync. Replacing instead of merging keeps stale entries from a
// dropped connection from surviving the reconnect.
func (t *Tracker) SyncReplace(typing []string) {
	t.mu.Lock()
	for _, e := range t.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	t.entries = make(map[string]*entry, len(typing))
	now := time.Now()
	for _, identity := range typing {
		if identity == "" {
			continue
		}
		e := &entry{typing: true, lastActivityAt: now, seq: 1}
		seq := e.seq
		id := identity
		e.timer = time.AfterFunc(t.debounce, func() {
			t.expire(id, seq)
		})
		t.entries[identity] = e
	}
	t.mu.Unlock()

	t.notify()
}

// Leave drops one identity immediately, e.g. on a presence-leave event.
func (t *Tracker) Leave(identity string) {
	t.mu.Lock()
	e := t.entries[identity]
	if e == nil {
		t.mu.Unlock()
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	changed := e.typing
	delete(t.entries, identity)
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

// Close stops all pending timers.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}

func (t *Tracker) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}
