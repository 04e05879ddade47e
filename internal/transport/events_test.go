// File: internal/transport/events_test.go
package transport

import (
	"testing"
)

func TestDecodeMessageEvent(t *testing.T) {
	frame := []byte(`{"type":"message","payload":{"thread_id":"t1","content":"hello"}}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if ev.Type != EventMessage {
		t.Fatalf("expected type %q, got %q", EventMessage, ev.Type)
	}
	if ev.Message == nil {
		t.Fatal("expected message payload to be set")
	}
	if ev.Message.ThreadID != "t1" || ev.Message.Content != "hello" {
		t.Errorf("unexpected payload: %+v", ev.Message)
	}
	if ev.Typing != nil || ev.Stream != nil || ev.Change != nil {
		t.Error("expected non-matching payloads to stay nil")
	}
}

func TestDecodeTypingEvent(t *testing.T) {
	frame := []byte(`{"type":"typing","payload":{"name":"ada","typing":true}}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if ev.Typing == nil || ev.Typing.Name != "ada" || !ev.Typing.Typing {
		t.Errorf("unexpected typing payload: %+v", ev.Typing)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"telemetry","payload":{}}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for truncated frame")
	}
	if _, err := Decode([]byte(`{"type":"typing","payload":[1,2]}`)); err == nil {
		t.Fatal("expected error for mistyped payload")
	}
}

func TestEncodeDecodeStreamEvent(t *testing.T) {
	in := &Event{
		Type: EventStreamContent,
		Stream: &StreamPayload{
			ThreadID:  "t9",
			MessageID: "pending-1",
			Text:      "partial answer",
		},
	}

	frame, err := Encode(in)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.Type != EventStreamContent {
		t.Fatalf("expected type %q, got %q", EventStreamContent, out.Type)
	}
	if out.Stream == nil || *out.Stream != *in.Stream {
		t.Errorf("roundtrip mismatch: %+v", out.Stream)
	}
}

func TestEncodeEventWithoutPayload(t *testing.T) {
	frame, err := Encode(&Event{Type: EventStreamCancel, ThreadSelect: &ThreadSelectPayload{ThreadID: "t1"}})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	out, err := Decode(frame)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if out.ThreadSelect == nil || out.ThreadSelect.ThreadID != "t1" {
		t.Errorf("unexpected cancel payload: %+v", out.ThreadSelect)
	}
}
