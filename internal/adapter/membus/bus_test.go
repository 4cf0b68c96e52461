package membus

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/Exec/internal/port/notification"
)

func TestPublishFansOutInOrder(t *testing.T) {
	b := New()
	var got []string
	for _, name := range []string{"a", "b"} {
		_, _ = b.Subscribe(context.Background(), func(_ context.Context, ev notification.Event) error {
			got = append(got, name+":"+ev.TaskID)
			return nil
		})
	}

	if err := b.Publish(context.Background(), notification.Event{TaskID: "t1"}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a:t1" || got[1] != "b:t1" {
		t.Fatalf("got %v", got)
	}
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	b := New()
	reached := false
	_, _ = b.Subscribe(context.Background(), func(context.Context, notification.Event) error {
		return errors.New("boom")
	})
	_, _ = b.Subscribe(context.Background(), func(context.Context, notification.Event) error {
		panic("worse")
	})
	_, _ = b.Subscribe(context.Background(), func(context.Context, notification.Event) error {
		reached = true
		return nil
	})

	if err := b.Publish(context.Background(), notification.Event{TaskID: "t1"}); err != nil {
		t.Fatalf("publisher saw handler failure: %v", err)
	}
	if !reached {
		t.Fatal("later subscriber was not called")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	cancel, _ := b.Subscribe(context.Background(), func(context.Context, notification.Event) error {
		calls++
		return nil
	})

	_ = b.Publish(context.Background(), notification.Event{})
	cancel()
	cancel()
	_ = b.Publish(context.Background(), notification.Event{})

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestSubscribeGroupTakesTurns(t *testing.T) {
	b := New()
	var got []string
	record := func(name string) notification.Handler {
		return func(_ context.Context, ev notification.Event) error {
			got = append(got, name+":"+ev.TaskID)
			return nil
		}
	}
	_, _ = b.SubscribeGroup(context.Background(), "workers", record("w1"))
	_, _ = b.Subscribe(context.Background(), record("all"))
	_, _ = b.SubscribeGroup(context.Background(), "workers", record("w2"))

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := b.Publish(context.Background(), notification.Event{TaskID: id}); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"w1:t1", "all:t1", "w2:t2", "all:t2", "w1:t3", "all:t3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if _, err := b.SubscribeGroup(context.Background(), "", record("x")); err == nil {
		t.Error("expected error for empty group")
	}
}
