// File: internal/session/session_test.go
package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/ratelimit"
	"github.com/iyunix/go-roomchat/internal/services/ai"
	"github.com/iyunix/go-roomchat/internal/services/chat"
	"github.com/iyunix/go-roomchat/internal/services/stream"
	"github.com/iyunix/go-roomchat/internal/transport"
)

type testLogger struct{}

func (*testLogger) Info(string, ...interface{})  {}
func (*testLogger) Error(string, ...interface{}) {}
func (*testLogger) Debug(string, ...interface{}) {}
func (*testLogger) Warn(string, ...interface{})  {}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (f *fakeMessageRepo) Create(_ context.Context, m *domain.Message) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, *m)
	return m, nil
}

func (f *fakeMessageRepo) FindByThreadID(_ context.Context, threadID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) FindByThreadIDWithPagination(ctx context.Context, threadID string, limit, offset int) ([]domain.Message, int64, error) {
	all, err := f.FindByThreadID(ctx, threadID)
	return all, int64(len(all)), err
}

func (f *fakeMessageRepo) FindRecent(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	all, err := f.FindByThreadID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeMessageRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessageRepo) CountByThreadID(ctx context.Context, threadID string) (int64, error) {
	all, err := f.FindByThreadID(ctx, threadID)
	return int64(len(all)), err
}

func (f *fakeMessageRepo) DeleteByThreadID(_ context.Context, threadID string) error {
	return nil
}

func (f *fakeMessageRepo) byRole(role string) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakeThreadRepo struct{}

func (*fakeThreadRepo) Create(_ context.Context, t *domain.Thread) (*domain.Thread, error) {
	return t, nil
}
func (*fakeThreadRepo) FindByID(_ context.Context, _ string) (*domain.Thread, error) {
	return nil, errors.New("not implemented")
}
func (*fakeThreadRepo) FindByRoomID(_ context.Context, _ string) ([]domain.Thread, error) {
	return nil, nil
}
func (*fakeThreadRepo) TouchUpdatedAt(_ context.Context, _ string) error { return nil }
func (*fakeThreadRepo) Delete(_ context.Context, _ string) error         { return nil }

// fakeProvider replays scripted deltas, invoking between after each
// one so tests can interleave cancels with the stream.
type fakeProvider struct {
	deltas  []ai.StreamDelta
	between func(i int)
	err     error
}

func (f *fakeProvider) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (f *fakeProvider) StreamCompletion(_ context.Context, _ []ai.TurnMessage, onDelta func(ai.StreamDelta) error) error {
	for i, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
		if f.between != nil {
			f.between(i)
		}
	}
	return f.err
}

func (f *fakeProvider) HealthCheck(_ context.Context) error { return nil }

func newTestRoom(t *testing.T, provider ai.Provider, limits ratelimit.TierLimits) (*Room, *fakeMessageRepo) {
	t.Helper()

	logger := &testLogger{}
	machine, err := stream.NewMachine(stream.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("creating machine: %v", err)
	}
	t.Cleanup(machine.Close)

	store := ratelimit.NewMemoryCounterStore()
	t.Cleanup(store.Close)

	builder, err := chat.NewContextBuilder(chat.DefaultConfig(), chat.NewCodeBlockCache(100, 50), logger)
	if err != nil {
		t.Fatalf("creating context builder: %v", err)
	}

	repo := &fakeMessageRepo{}
	room := NewRoom("room-1", RoomDeps{
		Hub:      transport.NewHub(logger),
		Machine:  machine,
		Messages: repo,
		Threads:  &fakeThreadRepo{},
		Limiter:  ratelimit.NewLimiter(store, limits, logger),
		Provider: provider,
		Contexts: builder,
		Logger:   logger,
	})
	return room, repo
}

func joinTestClient(room *Room, name, connID string) (*transport.Client, *Session) {
	client := transport.NewClient(connID, room.ID, domain.Identity{
		Name:   name,
		ConnID: connID,
		Tier:   domain.TierFree,
	}, nil, &testLogger{})
	return client, room.Join(client, "t1")
}

func TestSendMessagePersistsAndFansOut(t *testing.T) {
	room, repo := newTestRoom(t, &fakeProvider{}, ratelimit.DefaultTierLimits())
	clientA, sessA := joinTestClient(room, "ada", "conn-a")
	_, sessB := joinTestClient(room, "ben", "conn-b")

	room.HandleEvent(clientA, &transport.Event{
		Type:    transport.EventMessage,
		Message: &transport.MessagePayload{ThreadID: "t1", Content: "hello"},
	})

	if n, _ := repo.CountByThreadID(context.Background(), "t1"); n != 1 {
		t.Fatalf("expected 1 persisted message, got %d", n)
	}
	if got := sessA.Messages(); len(got) != 1 {
		t.Errorf("sender view: expected 1 message (echo absorbed), got %d", len(got))
	}
	if got := sessB.Messages(); len(got) != 1 || got[0].Content != "hello" {
		t.Errorf("peer view: expected the message, got %+v", got)
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	limits := ratelimit.TierLimits{
		domain.TierFree: {
			ratelimit.ActionMessage: {PerHour: 2, PerDay: 10},
		},
	}
	room, repo := newTestRoom(t, &fakeProvider{}, limits)
	clientA, _ := joinTestClient(room, "ada", "conn-a")

	for i := 0; i < 3; i++ {
		room.HandleEvent(clientA, &transport.Event{
			Type:    transport.EventMessage,
			Message: &transport.MessagePayload{ThreadID: "t1", Content: "hi"},
		})
	}

	if n, _ := repo.CountByThreadID(context.Background(), "t1"); n != 2 {
		t.Errorf("expected 2 persisted messages under the limit, got %d", n)
	}
}

func TestTypingFanOut(t *testing.T) {
	room, _ := newTestRoom(t, &fakeProvider{}, ratelimit.DefaultTierLimits())
	clientA, sessA := joinTestClient(room, "ada", "conn-a")
	_, sessB := joinTestClient(room, "ben", "conn-b")

	room.HandleEvent(clientA, &transport.Event{
		Type:   transport.EventTyping,
		Typing: &transport.TypingPayload{Typing: true},
	})

	if got := sessB.Typing(); len(got) != 1 || got[0] != "ada" {
		t.Errorf("peer should see ada typing, got %v", got)
	}
	if got := sessA.Typing(); len(got) != 0 {
		t.Errorf("sender should never see themselves typing, got %v", got)
	}
}

func TestSendMessageStopsTyping(t *testing.T) {
	room, _ := newTestRoom(t, &fakeProvider{}, ratelimit.DefaultTierLimits())
	clientA, _ := joinTestClient(room, "ada", "conn-a")
	_, sessB := joinTestClient(room, "ben", "conn-b")

	room.HandleEvent(clientA, &transport.Event{
		Type:   transport.EventTyping,
		Typing: &transport.TypingPayload{Typing: true},
	})
	room.HandleEvent(clientA, &transport.Event{
		Type:    transport.EventMessage,
		Message: &transport.MessagePayload{ThreadID: "t1", Content: "done typing"},
	})

	if got := sessB.Typing(); len(got) != 0 {
		t.Errorf("sending a message should clear typing state, got %v", got)
	}
}

func TestRunAITurnCompletes(t *testing.T) {
	provider := &fakeProvider{deltas: []ai.StreamDelta{
		{Reasoning: "considering the question"},
		{Content: "The answer "},
		{Content: "is 42."},
	}}
	room, repo := newTestRoom(t, provider, ratelimit.DefaultTierLimits())
	_, sessA := joinTestClient(room, "ada", "conn-a")

	room.runAITurn(sessA, &transport.MessagePayload{ThreadID: "t1", Content: "what is the answer?"})

	assistant := repo.byRole(domain.RoleAssistant)
	if len(assistant) != 1 {
		t.Fatalf("expected 1 persisted assistant message, got %d", len(assistant))
	}
	if assistant[0].Content != "The answer is 42." {
		t.Errorf("unexpected assistant content: %q", assistant[0].Content)
	}
	if assistant[0].Reasoning != "considering the question" {
		t.Errorf("unexpected reasoning: %q", assistant[0].Reasoning)
	}
	if _, live := room.machine.Snapshot("t1"); live {
		t.Error("expected turn to be consumed after completion")
	}
	if got := sessA.Messages(); len(got) != 1 {
		t.Errorf("expected assistant message in the sender's view, got %d", len(got))
	}
}

func TestRunAITurnRateLimited(t *testing.T) {
	limits := ratelimit.TierLimits{
		domain.TierFree: {
			ratelimit.ActionAIRequest: {PerHour: 0, PerDay: 0},
		},
	}
	provider := &fakeProvider{deltas: []ai.StreamDelta{{Content: "never"}}}
	room, repo := newTestRoom(t, provider, limits)
	_, sessA := joinTestClient(room, "ada", "conn-a")

	room.runAITurn(sessA, &transport.MessagePayload{ThreadID: "t1", Content: "hi"})

	if got := repo.byRole(domain.RoleAssistant); len(got) != 0 {
		t.Errorf("expected no assistant message past the limit, got %d", len(got))
	}
	if _, live := room.machine.Snapshot("t1"); live {
		t.Error("expected no turn to be started")
	}
}

func TestRunAITurnProviderError(t *testing.T) {
	provider := &fakeProvider{
		deltas: []ai.StreamDelta{{Content: "partial"}},
		err:    errors.New("upstream 500"),
	}
	room, repo := newTestRoom(t, provider, ratelimit.DefaultTierLimits())
	_, sessA := joinTestClient(room, "ada", "conn-a")

	room.runAITurn(sessA, &transport.MessagePayload{ThreadID: "t1", Content: "hi"})

	if got := repo.byRole(domain.RoleAssistant); len(got) != 0 {
		t.Errorf("expected no assistant message after provider failure, got %d", len(got))
	}
	if _, live := room.machine.Snapshot("t1"); live {
		t.Error("expected failed turn to be consumed")
	}
}

func TestCancelDiscardsInFlightTurn(t *testing.T) {
	room, repo := newTestRoom(t, nil, ratelimit.DefaultTierLimits())
	clientA, sessA := joinTestClient(room, "ada", "conn-a")

	provider := &fakeProvider{
		deltas: []ai.StreamDelta{{Content: "part one "}, {Content: "part two"}},
		between: func(i int) {
			if i == 0 {
				room.HandleEvent(clientA, &transport.Event{
					Type:         transport.EventStreamCancel,
					ThreadSelect: &transport.ThreadSelectPayload{ThreadID: "t1"},
				})
			}
		},
	}
	room.provider = provider

	room.runAITurn(sessA, &transport.MessagePayload{ThreadID: "t1", Content: "hi"})

	if got := repo.byRole(domain.RoleAssistant); len(got) != 0 {
		t.Errorf("expected cancelled turn to persist nothing, got %d", len(got))
	}
	if _, live := room.machine.Snapshot("t1"); live {
		t.Error("expected cancelled turn to be consumed")
	}
}

func TestCancelThenRetryKeepsStreamsApart(t *testing.T) {
	room, repo := newTestRoom(t, nil, ratelimit.DefaultTierLimits())
	clientA, sessA := joinTestClient(room, "ada", "conn-a")

	retry := &fakeProvider{deltas: []ai.StreamDelta{{Content: "NEW answer"}}}

	// The first stream is cancelled after its opening delta; the user
	// retries immediately while the old goroutine still has one delta
	// left to drain.
	first := &fakeProvider{
		deltas: []ai.StreamDelta{{Content: "OLD1"}, {Content: "OLD2"}},
		between: func(i int) {
			if i != 0 {
				return
			}
			room.HandleEvent(clientA, &transport.Event{
				Type:         transport.EventStreamCancel,
				ThreadSelect: &transport.ThreadSelectPayload{ThreadID: "t1"},
			})
			room.provider = retry
			room.runAITurn(sessA, &transport.MessagePayload{ThreadID: "t1", Content: "try again"})
		},
	}
	room.provider = first

	room.runAITurn(sessA, &transport.MessagePayload{ThreadID: "t1", Content: "hi"})

	assistant := repo.byRole(domain.RoleAssistant)
	if len(assistant) != 1 {
		t.Fatalf("expected exactly the retried response persisted, got %d", len(assistant))
	}
	if assistant[0].Content != "NEW answer" {
		t.Errorf("cancelled stream leaked into the retry: %q", assistant[0].Content)
	}
	if _, live := room.machine.Snapshot("t1"); live {
		t.Error("expected no live turn after both streams finished")
	}
}

func TestDuplicateAITurnRejected(t *testing.T) {
	room, _ := newTestRoom(t, &fakeProvider{deltas: []ai.StreamDelta{{Content: "x"}}}, ratelimit.DefaultTierLimits())
	_, sessA := joinTestClient(room, "ada", "conn-a")

	if !room.machine.Start("t1") {
		t.Fatal("seed turn failed to start")
	}
	room.runAITurn(sessA, &transport.MessagePayload{ThreadID: "t1", Content: "hi"})

	turn, ok := room.machine.Snapshot("t1")
	if !ok {
		t.Fatal("expected the seed turn to survive the duplicate request")
	}
	if turn.Phase != stream.PhaseStarted {
		t.Errorf("expected seed turn untouched, got phase %s", turn.Phase)
	}
}

func TestLeaveClearsTyping(t *testing.T) {
	room, _ := newTestRoom(t, &fakeProvider{}, ratelimit.DefaultTierLimits())
	clientA, _ := joinTestClient(room, "ada", "conn-a")
	_, sessB := joinTestClient(room, "ben", "conn-b")

	room.HandleEvent(clientA, &transport.Event{
		Type:   transport.EventTyping,
		Typing: &transport.TypingPayload{Typing: true},
	})
	room.Leave(clientA)

	deadline := time.Now().Add(time.Second)
	for len(sessB.Typing()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected typing cleared after leave, got %v", sessB.Typing())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
