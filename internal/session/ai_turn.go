// File: internal/session/ai_turn.go
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/ratelimit"
	"github.com/iyunix/go-roomchat/internal/services/ai"
	"github.com/iyunix/go-roomchat/internal/services/stream"
	"github.com/iyunix/go-roomchat/internal/transport"
)

const (
	streamTimeout    = 2 * time.Minute
	retrievalTimeout = 10 * time.Second
	aiName           = "assistant"
)

const systemPrompt = "You are a helpful assistant participating in a multi-user " +
	"chat room. Messages are prefixed with the sender's name. Answer the latest " +
	"request, taking the whole conversation into account. Be concise."

// errTurnStopped aborts the provider stream once the machine stops
// accepting chunks (cancel or watchdog timeout).
var errTurnStopped = errors.New("turn no longer live")

// runAITurn drives one complete AI response: limiter gate, context
// window, source retrieval, streamed completion feeding the machine
// and the room, then persistence of the final message.
func (r *Room) runAITurn(sess *Session, payload *transport.MessagePayload) {
	identity := sess.client.Identity
	threadID := payload.ThreadID

	res, err := r.limiter.TryConsume(context.Background(), identity.Name, r.ID, ratelimit.ActionAIRequest, identity.Tier)
	if err != nil {
		r.logger.Error("limiter unavailable", "name", identity.Name, "error", err)
		r.sendError(sess, "AI request could not be processed, try again")
		return
	}
	if !res.Allowed {
		r.sendLimitExceeded(sess, res)
		return
	}

	if !r.machine.Start(threadID) {
		r.sendError(sess, "an AI response is already streaming in this thread")
		return
	}
	turn, _ := r.machine.Snapshot(threadID)

	r.hub.Broadcast(r.ID, &transport.Event{
		Type:   transport.EventStreamStart,
		Stream: &transport.StreamPayload{ThreadID: threadID, MessageID: turn.MessageID},
	}, "")

	content, reasoning, err := r.streamCompletion(threadID, turn.MessageID, payload.Content)
	if err != nil {
		r.finishFailedTurn(threadID, turn.MessageID, err)
		return
	}
	// End refuses when this turn was cancelled or superseded after the
	// last chunk; the stream's output must not be persisted then.
	if !r.machine.End(threadID, turn.MessageID, content, reasoning) {
		r.logger.Info("discarding stream output for finished turn", "thread_id", threadID)
		return
	}

	msg := domain.Message{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		RoomID:     r.ID,
		Role:       domain.RoleAssistant,
		SenderName: aiName,
		Content:    content,
		Reasoning:  reasoning,
		CreatedAt:  time.Now().UTC(),
	}
	if r.sources != nil {
		msg.Sources = r.findSources(payload.Content)
	}

	// The persisted record supersedes the placeholder; stream_end tells
	// clients to drop it once the change arrives.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if _, err := r.messages.Create(ctx, &msg); err != nil {
		r.logger.Error("failed to persist AI response", "thread_id", threadID, "error", err)
	} else {
		if err := r.threads.TouchUpdatedAt(ctx, threadID); err != nil {
			r.logger.Warn("failed to touch thread", "thread_id", threadID, "error", err)
		}
		r.fanOutChange(changeEventFor(msg, ""))
	}

	r.hub.Broadcast(r.ID, &transport.Event{
		Type:   transport.EventStreamEnd,
		Stream: &transport.StreamPayload{ThreadID: threadID, MessageID: turn.MessageID},
	}, "")
	r.machine.Consume(threadID)
}

// streamCompletion builds the prompt and consumes the provider stream,
// mirroring every accepted delta into the machine and onto the wire.
func (r *Room) streamCompletion(threadID, messageID, question string) (content, reasoning string, err error) {
	prompt, err := r.buildPrompt(threadID, question)
	if err != nil {
		return "", "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamTimeout)
	defer cancel()

	var contentBuf, reasoningBuf strings.Builder
	reasoningDone := false
	err = r.provider.StreamCompletion(ctx, prompt, func(delta ai.StreamDelta) error {
		if delta.Reasoning != "" {
			if !r.machine.ReasoningChunk(threadID, messageID, delta.Reasoning) {
				return errTurnStopped
			}
			reasoningBuf.WriteString(delta.Reasoning)
			r.hub.Broadcast(r.ID, &transport.Event{
				Type:   transport.EventStreamReasoning,
				Stream: &transport.StreamPayload{ThreadID: threadID, Text: delta.Reasoning},
			}, "")
		}
		if delta.Content != "" {
			if reasoningBuf.Len() > 0 && !reasoningDone {
				reasoningDone = true
				r.machine.ReasoningEnd(threadID, messageID, "")
				r.hub.Broadcast(r.ID, &transport.Event{
					Type:   transport.EventStreamReasoningEnd,
					Stream: &transport.StreamPayload{ThreadID: threadID},
				}, "")
			}
			if !r.machine.ContentChunk(threadID, messageID, delta.Content) {
				return errTurnStopped
			}
			contentBuf.WriteString(delta.Content)
			r.hub.Broadcast(r.ID, &transport.Event{
				Type:   transport.EventStreamContent,
				Stream: &transport.StreamPayload{ThreadID: threadID, Text: delta.Content},
			}, "")
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(contentBuf.String()) == "" {
		return "", "", stream.NewProviderError(threadID, "empty completion", nil)
	}
	return contentBuf.String(), reasoningBuf.String(), nil
}

// buildPrompt loads thread history, compresses it into the bounded
// context window, and appends the triggering request.
func (r *Room) buildPrompt(threadID, question string) ([]ai.TurnMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	history, err := r.messages.FindRecent(ctx, threadID, historyLimit)
	if err != nil {
		return nil, stream.NewProviderError(threadID, "failed to load thread history", err)
	}

	window := r.contexts.Build(history)

	prompt := make([]ai.TurnMessage, 0, len(window.Recent)+3)
	prompt = append(prompt, ai.TurnMessage{Role: "system", Content: systemPrompt})
	if window.Summary != "" {
		prompt = append(prompt, ai.TurnMessage{Role: "system", Content: window.Summary})
	}
	for _, m := range window.Recent {
		role := domain.RoleUser
		text := m.SenderName + ": " + m.Content
		if m.IsAssistant() {
			role = domain.RoleAssistant
			text = m.Content
		}
		prompt = append(prompt, ai.TurnMessage{Role: role, Content: text})
	}
	if strings.TrimSpace(question) != "" {
		prompt = append(prompt, ai.TurnMessage{Role: domain.RoleUser, Content: question})
	}
	return prompt, nil
}

// findSources embeds the question and queries the vector index.
// Best-effort: citation failures never block the response.
func (r *Room) findSources(question string) []domain.Source {
	ctx, cancel := context.WithTimeout(context.Background(), retrievalTimeout)
	defer cancel()

	embedding, err := r.provider.CreateEmbedding(ctx, question)
	if err != nil {
		r.logger.Warn("embedding failed; skipping sources", "error", err)
		return nil
	}
	sources, err := r.sources.FindSources(ctx, embedding)
	if err != nil {
		r.logger.Warn("source retrieval failed; skipping sources", "error", err)
		return nil
	}
	return sources
}

// finishFailedTurn records the failure unless the turn already reached
// a terminal phase (cancel or watchdog), and tells the room. It only
// acts on the turn it ran: once the thread carries a newer turn, the
// stale goroutine backs off.
func (r *Room) finishFailedTurn(threadID, messageID string, cause error) {
	turn, ok := r.machine.Snapshot(threadID)
	if !ok || turn.MessageID != messageID {
		return
	}

	switch {
	case errors.Is(cause, errTurnStopped):
		// Cancel broadcast its own event and the watchdog hook
		// broadcasts timeouts; anything still in Error here missed both.
		if turn.Phase == stream.PhaseError {
			r.broadcastStreamError(threadID, turn)
			r.machine.Consume(threadID)
		}
		// PhaseCancelled was consumed by cancelTurn already.
	default:
		r.machine.Fail(threadID, messageID, cause)
		failed, _ := r.machine.Snapshot(threadID)
		r.broadcastStreamError(threadID, failed)
		r.machine.Consume(threadID)
	}
}

func (r *Room) broadcastStreamError(threadID string, turn stream.Turn) {
	msg := "AI response failed"
	if turn.Err != nil {
		msg = turn.Err.Error()
	}
	r.hub.Broadcast(r.ID, &transport.Event{
		Type: transport.EventStreamError,
		Stream: &transport.StreamPayload{
			ThreadID:    threadID,
			MessageID:   turn.MessageID,
			Message:     msg,
			Recoverable: true,
		},
	}, "")
}
