package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := Message{Type: "session.completed", Body: []byte("sess-1")}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-msgs:
		if got.Type != want.Type || string(got.Body) != string(want.Body) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	q := NewInMemory(1)
	if err := q.Publish(ctx, Message{Type: "session.completed", Body: []byte("sess-1")}); err != nil {
		t.Fatal(err)
	}
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Cancel while the forwarder holds an undelivered message; it must give
	// up the send and close the channel instead of blocking.
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-msgs:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("consume channel not closed after cancel")
		}
	}
}

func TestInMemoryPublishRespectsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewInMemory(0)
	if err := q.Publish(ctx, Message{Type: "x"}); err == nil {
		t.Fatal("publish on cancelled context succeeded")
	}
}
