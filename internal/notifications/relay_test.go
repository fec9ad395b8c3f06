package notifications

import (
	"sync"
	"testing"
	"time"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/config"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/protocol"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/ws"
)

type publishCall struct {
	channel string
	msg     protocol.Message
	exclude *ws.Client
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	got   chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{got: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(channel string, msg any, exclude *ws.Client) (int, error) {
	p.mu.Lock()
	p.calls = append(p.calls, publishCall{channel: channel, msg: msg.(protocol.Message), exclude: exclude})
	p.mu.Unlock()
	p.got <- struct{}{}
	return 1, nil
}

func (p *recordingPublisher) snapshot() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

func TestRelay_DeliversRemoteEventsOnly(t *testing.T) {
	broker := NewInMemoryBroker()

	localA := newRecordingPublisher()
	localB := newRecordingPublisher()
	a := NewRelay(broker, localA, "instance-a")
	b := NewRelay(broker, localB, "instance-b")
	for _, r := range []*Relay{a, b} {
		if err := r.Start(); err != nil {
			t.Fatalf("start relay: %v", err)
		}
	}

	if err := a.Mirror("orders", map[string]any{"x": 1}); err != nil {
		t.Fatalf("mirror failed: %v", err)
	}

	select {
	case <-localB.got:
	case <-time.After(2 * time.Second):
		t.Fatal("remote instance never received the notification")
	}
	broker.Close()

	calls := localB.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected one delivery on instance b, got %d", len(calls))
	}
	c := calls[0]
	if c.channel != "orders" || c.exclude != nil {
		t.Errorf("unexpected publish call %+v", c)
	}
	encoded, err := protocol.Encode(c.msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if want := `{"type":"notification","channel":"orders","data":{"x":1}}`; string(encoded) != want {
		t.Errorf("expected %s, got %s", want, encoded)
	}

	if n := len(localA.snapshot()); n != 0 {
		t.Errorf("origin instance must not redeliver its own notification, got %d", n)
	}
}

func TestRelay_MirrorAfterCloseFails(t *testing.T) {
	broker := NewInMemoryBroker()
	r := NewRelay(broker, newRecordingPublisher(), "a")
	broker.Close()

	if err := r.Mirror("orders", 1); err == nil {
		t.Fatal("expected error mirroring on a closed broker")
	}
	if err := r.Start(); err == nil {
		t.Fatal("expected error starting on a closed broker")
	}
}

func TestRelay_IntoHub(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	hub := ws.NewHub()
	r := NewRelay(broker, hub, "b")
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// An event from another instance on a channel nobody here follows is a
	// no-op rather than an error.
	r.deliver(mustEvent(t, "a", "orders", 1))
	r.deliver(Event{Origin: "a"})
}

func TestNewBroker_FallsBackToInMemory(t *testing.T) {
	b, err := NewBroker(&config.Config{}, "id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*InMemoryBroker); !ok {
		t.Fatalf("expected InMemoryBroker, got %T", b)
	}
}

func TestNewBroker_KafkaPerInstanceGroup(t *testing.T) {
	b, err := NewBroker(&config.Config{KafkaBrokers: []string{"localhost:9092"}}, "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	kb, ok := b.(*KafkaBroker)
	if !ok {
		t.Fatalf("expected KafkaBroker, got %T", b)
	}
	if kb.config.ConsumerGroup != defaultConsumerGroup+"-abc" {
		t.Errorf("expected per-instance group, got %s", kb.config.ConsumerGroup)
	}
}
