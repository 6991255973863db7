package events

import (
	"testing"
	"time"
)

func receiveOne(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

// openingSnapshot consumes the model:status event every subscription
// starts with.
func openingSnapshot(t *testing.T, sub *Subscription) Event {
	t.Helper()
	event := receiveOne(t, sub)
	if event.Channel != ChannelModelStatus {
		t.Fatalf("expected opening model:status, got %s", event.Channel)
	}
	return event
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer a.Unsubscribe()
	defer b.Unsubscribe()
	openingSnapshot(t, a)
	openingSnapshot(t, b)

	bus.Publish(ChannelJobComplete, JobCompletePayload{JobID: "j1", Success: true})

	for _, sub := range []*Subscription{a, b} {
		event := receiveOne(t, sub)
		if event.Channel != ChannelJobComplete {
			t.Errorf("wrong channel: %s", event.Channel)
		}
		payload, ok := event.Payload.(JobCompletePayload)
		if !ok || payload.JobID != "j1" || !payload.Success {
			t.Errorf("wrong payload: %+v", event.Payload)
		}
	}
}

func TestOrderWithinChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()
	openingSnapshot(t, sub)

	for i := 0; i < 5; i++ {
		bus.Publish(ChannelJobProgress, JobProgressPayload{JobID: "j", Progress: i * 20})
	}
	for i := 0; i < 5; i++ {
		event := receiveOne(t, sub)
		if event.Payload.(JobProgressPayload).Progress != i*20 {
			t.Fatalf("out of order at %d: %+v", i, event.Payload)
		}
	}
}

// A subscriber that never drains must not block publishers; overflow is
// silently dropped.
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe()
	defer slow.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize*3; i++ {
			bus.Publish(ChannelQueueUpdate, QueueUpdatePayload{Length: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestModelStatusSnapshotOnSubscribe(t *testing.T) {
	bus := NewBus()
	bus.Publish(ChannelModelStatus, ModelStatusPayload{Status: "loaded", ModelKey: "small"})

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	event := receiveOne(t, sub)
	if event.Channel != ChannelModelStatus {
		t.Fatalf("expected snapshot first, got %s", event.Channel)
	}
	if event.Payload.(ModelStatusPayload).ModelKey != "small" {
		t.Errorf("snapshot payload wrong: %+v", event.Payload)
	}

	t.Run("synthetic unloaded snapshot before any status", func(t *testing.T) {
		fresh := NewBus().Subscribe()
		defer fresh.Unsubscribe()

		event := openingSnapshot(t, fresh)
		payload := event.Payload.(ModelStatusPayload)
		if payload.Status != "unloaded" || payload.ModelKey != "" {
			t.Errorf("expected synthetic unloaded snapshot, got %+v", payload)
		}
	})
}

func TestUnsubscribeClosesFeed(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	sub.Unsubscribe()

	if _, ok := <-sub.Events(); ok {
		t.Error("channel should be closed")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("subscriber leaked: %d", bus.SubscriberCount())
	}

	// Double unsubscribe is a no-op.
	sub.Unsubscribe()

	// Publishing after unsubscribe must not panic.
	bus.Publish(ChannelModelError, ModelErrorPayload{Message: "boom"})
}
