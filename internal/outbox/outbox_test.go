package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msg := Message{Action: "addAttendance", Payload: json.RawMessage(`{"id":"r1"}`)}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatal(err)
	}

	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-out:
		if got.Action != "addAttendance" || string(got.Payload) != `{"id":"r1"}` {
			t.Errorf("unexpected message: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestInMemoryPublishNeverBlocksWhenFull(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	if err := q.Publish(ctx, Message{Action: "a"}); err != nil {
		t.Fatal(err)
	}

	// Nothing consumes the queue; the second publish must return
	// immediately rather than hold the caller until the context dies.
	done := make(chan error, 1)
	go func() { done <- q.Publish(ctx, Message{Action: "b"}) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrFull) {
			t.Errorf("publish to full queue returned %v, want ErrFull", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publish to full queue blocked")
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := Message{Action: "updateAttendance", Payload: json.RawMessage(`{"id":"r1","status":"haid"}`), Attempts: 2}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var got Message
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Action != msg.Action || got.Attempts != 2 || string(got.Payload) != string(msg.Payload) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
