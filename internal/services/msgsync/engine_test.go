// File: internal/services/msgsync/engine_test.go
package msgsync

import (
	"fmt"
	"testing"
	"time"

	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/services"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	self := domain.Identity{Name: "alice", ConnID: "conn-1", Tier: domain.TierFree}
	return NewEngine(self, "t1", &services.NoOpLogger{})
}

func event(id, threadID, sender string, ai bool, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:           id,
		ThreadID:     threadID,
		RoomID:       "r1",
		SenderName:   sender,
		IsAIResponse: ai,
		Content:      "content of " + id,
		CreatedAt:    at,
	}
}

func TestIngestDeduplicatesRedelivery(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	ev := event("m1", "t1", "bob", false, now)
	added, reason := e.Ingest(ev)
	if !added || reason != DropNone {
		t.Fatalf("first ingest: added=%v reason=%q", added, reason)
	}

	// Network retry delivers the identical record again.
	added, reason = e.Ingest(ev)
	if added {
		t.Fatal("duplicate event must not be added")
	}
	if reason != DropDuplicate {
		t.Fatalf("expected DropDuplicate, got %q", reason)
	}

	if got := len(e.Snapshot()); got != 1 {
		t.Fatalf("expected 1 message after redelivery, got %d", got)
	}
}

func TestSnapshotOrderedByCreatedAt(t *testing.T) {
	e := testEngine(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Ingest in reverse creation order.
	for i := 4; i >= 0; i-- {
		ev := event(fmt.Sprintf("m%d", i), "t1", "bob", false, base.Add(time.Duration(i)*time.Second))
		if added, _ := e.Ingest(ev); !added {
			t.Fatalf("event m%d not added", i)
		}
	}

	msgs := e.Snapshot()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of order at index %d", i)
		}
	}
}

func TestSnapshotTieBreakByID(t *testing.T) {
	e := testEngine(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	e.Ingest(event("b", "t1", "bob", false, at))
	e.Ingest(event("a", "t1", "carol", false, at))

	msgs := e.Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Fatalf("tie-break order wrong: %s, %s", msgs[0].ID, msgs[1].ID)
	}
}

func TestIngestIdempotenceProperty(t *testing.T) {
	e := testEngine(t)
	base := time.Now()

	events := []ChangeEvent{
		event("m1", "t1", "bob", false, base),
		event("m2", "t1", "carol", false, base.Add(time.Second)),
		event("m1", "t1", "bob", false, base), // redelivery
		event("m3", "t1", "bob", true, base.Add(2*time.Second)),
		event("m2", "t1", "carol", false, base.Add(time.Second)), // redelivery
	}
	for _, ev := range events {
		e.Ingest(ev)
	}

	dedup := testEngine(t)
	dedup.Ingest(events[0])
	dedup.Ingest(events[1])
	dedup.Ingest(events[3])

	got, want := e.Snapshot(), dedup.Snapshot()
	if len(got) != len(want) {
		t.Fatalf("lists differ in length: %d vs %d", len(got), len(want))
	}
	for i := range got {
		if got[i].ID != want[i].ID {
			t.Fatalf("lists differ at %d: %s vs %s", i, got[i].ID, want[i].ID)
		}
	}
}

func TestIngestDiscardsCrossThreadEvents(t *testing.T) {
	e := testEngine(t)

	added, reason := e.Ingest(event("m1", "t2", "bob", false, time.Now()))
	if added || reason != DropCrossThread {
		t.Fatalf("cross-thread event: added=%v reason=%q", added, reason)
	}
	if got := len(e.Snapshot()); got != 0 {
		t.Fatalf("expected empty view, got %d messages", got)
	}

	// Switching to the thread makes later deliveries visible.
	e.SetActiveThread("t2")
	if added, _ := e.Ingest(event("m1", "t2", "bob", false, time.Now())); !added {
		t.Fatal("event for newly active thread not added")
	}
}

func TestIngestSuppressesOwnEcho(t *testing.T) {
	e := testEngine(t)

	// Echo of the caller's own message, matched by connection ID.
	ev := event("m1", "t1", "alice", false, time.Now())
	ev.SenderConnID = "conn-1"
	added, reason := e.Ingest(ev)
	if added || reason != DropOwnEcho {
		t.Fatalf("own echo: added=%v reason=%q", added, reason)
	}

	// A different participant sharing the display name is kept when
	// the event carries a distinct connection ID.
	other := event("m2", "t1", "alice", false, time.Now())
	other.SenderConnID = "conn-9"
	if added, _ := e.Ingest(other); !added {
		t.Fatal("same-name participant with other connection must be kept")
	}

	// AI responses are never suppressed, whatever the sender fields say.
	ai := event("m3", "t1", "alice", true, time.Now())
	ai.SenderConnID = "conn-1"
	if added, _ := e.Ingest(ai); !added {
		t.Fatal("AI response must not be suppressed as own echo")
	}
}

func TestIngestSuppressesOwnEchoByNameFallback(t *testing.T) {
	e := NewEngine(domain.Identity{Name: "alice"}, "t1", &services.NoOpLogger{})

	added, reason := e.Ingest(event("m1", "t1", "alice", false, time.Now()))
	if added || reason != DropOwnEcho {
		t.Fatalf("name-matched echo: added=%v reason=%q", added, reason)
	}
}

func TestIngestDropsMalformedEvents(t *testing.T) {
	e := testEngine(t)

	noID := event("", "t1", "bob", false, time.Now())
	if added, reason := e.Ingest(noID); added || reason != DropMalformed {
		t.Fatalf("missing id: added=%v reason=%q", added, reason)
	}

	noContent := event("m1", "t1", "bob", false, time.Now())
	noContent.Content = ""
	if added, reason := e.Ingest(noContent); added || reason != DropMalformed {
		t.Fatalf("missing content: added=%v reason=%q", added, reason)
	}
}

func TestAppendThenEchoShowsOnce(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	msg := domain.Message{
		ID: "m1", ThreadID: "t1", RoomID: "r1",
		Role: domain.RoleUser, SenderName: "alice",
		Content: "hi", CreatedAt: now,
	}
	e.Append(msg)

	ev := event("m1", "t1", "alice", false, now)
	ev.SenderConnID = "conn-1"
	if added, _ := e.Ingest(ev); added {
		t.Fatal("feed echo of optimistic message must not be added")
	}
	if got := len(e.Snapshot()); got != 1 {
		t.Fatalf("expected exactly 1 message, got %d", got)
	}
}

func TestDropThreadPrunesState(t *testing.T) {
	e := testEngine(t)
	e.Ingest(event("m1", "t1", "bob", false, time.Now()))
	e.DropThread("t1")

	if got := len(e.Snapshot()); got != 0 {
		t.Fatalf("expected empty view after teardown, got %d", got)
	}
	// Redelivery after teardown is treated as new; seen-set was pruned.
	if added, _ := e.Ingest(event("m1", "t1", "bob", false, time.Now())); !added {
		t.Fatal("event after teardown should be ingested fresh")
	}
}
