package notifications

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func mustEvent(t *testing.T, origin, channel string, payload any) Event {
	t.Helper()
	e, err := NewEvent(origin, channel, payload)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return e
}

func TestInMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	var received Event
	done := make(chan struct{})

	_, err := broker.Subscribe(TopicChannelNotifications, func(e Event) {
		received = e
		close(done)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	event := mustEvent(t, "instance-a", "orders", map[string]any{"x": 1})
	if err := broker.Publish(TopicChannelNotifications, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	if received.ID != event.ID {
		t.Errorf("expected event ID %s, got %s", event.ID, received.ID)
	}
	if received.Channel != "orders" || received.Origin != "instance-a" {
		t.Errorf("unexpected event %+v", received)
	}
	if string(received.Payload) != `{"x":1}` {
		t.Errorf("expected payload {\"x\":1}, got %s", received.Payload)
	}
}

func TestInMemoryBroker_MultipleSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		_, err := broker.Subscribe(TopicChannelNotifications, func(e Event) {
			count.Add(1)
			wg.Done()
		})
		if err != nil {
			t.Fatalf("subscribe %d failed: %v", i, err)
		}
	}

	if err := broker.Publish(TopicChannelNotifications, mustEvent(t, "a", "orders", 1)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all subscribers")
	}

	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 handler calls, got %d", got)
	}
}

func TestInMemoryBroker_TopicFiltering(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	var otherCount atomic.Int32
	done := make(chan struct{}, 1)

	broker.Subscribe(TopicChannelNotifications, func(e Event) { done <- struct{}{} })
	broker.Subscribe("catalog.other", func(e Event) { otherCount.Add(1) })

	if err := broker.Publish(TopicChannelNotifications, mustEvent(t, "a", "orders", 1)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	// Close drains the queue, so any misrouted delivery has happened by now.
	broker.Close()
	if got := otherCount.Load(); got != 0 {
		t.Errorf("expected 0 events on other topic, got %d", got)
	}
}

func TestInMemoryBroker_PreservesOrder(t *testing.T) {
	broker := NewInMemoryBroker()

	var got []string
	broker.Subscribe(TopicChannelNotifications, func(e Event) {
		var s string
		json.Unmarshal(e.Payload, &s)
		got = append(got, s)
	})

	want := []string{"a", "b", "c", "d"}
	for _, s := range want {
		broker.Publish(TopicChannelNotifications, mustEvent(t, "x", "orders", s))
	}
	broker.Close()

	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("out of order: %v", got)
		}
	}
}

func TestInMemoryBroker_FullQueueDoesNotBlock(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	release := make(chan struct{})
	broker.Subscribe(TopicChannelNotifications, func(e Event) { <-release })
	defer close(release)

	var full bool
	for range cap(broker.eventCh) + 2 {
		if err := broker.Publish(TopicChannelNotifications, Event{}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatal("expected ErrQueueFull once the queue is saturated")
	}
}

func TestInMemoryBroker_ClosePreventsFurtherUse(t *testing.T) {
	broker := NewInMemoryBroker()
	broker.Close()

	if err := broker.Publish(TopicChannelNotifications, Event{}); !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("expected ErrBrokerClosed publishing after close, got %v", err)
	}

	if _, err := broker.Subscribe(TopicChannelNotifications, func(e Event) {}); !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("expected ErrBrokerClosed subscribing after close, got %v", err)
	}
}

func TestInMemoryBroker_DoubleCloseIsNoop(t *testing.T) {
	broker := NewInMemoryBroker()
	if err := broker.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := broker.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}

func TestNewEvent_GeneratesIDAndTimestamp(t *testing.T) {
	e := mustEvent(t, "instance-a", "orders", nil)

	if e.ID == "" {
		t.Error("expected non-empty ID")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
	if string(e.Payload) != "null" {
		t.Errorf("expected null payload, got %s", e.Payload)
	}
}

func TestNewEvent_UnencodablePayload(t *testing.T) {
	if _, err := NewEvent("a", "orders", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
