package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aether-core/dashboard/pkg/types"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic   string
	payload []byte
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs chan message
	err  error
}

func (b *fakeBroker) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.msgs <- message{topic: topic, payload: payload.([]byte)}
	}
	return doneToken{err: b.err}
}

func TestEmitPublishesToKindTopic(t *testing.T) {
	broker := &fakeBroker{msgs: make(chan message, 4)}
	e := newWithPublisher(Config{Prefix: "lab/aether"}, broker)
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	defer func() {
		cancel()
		e.Close()
	}()

	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	e.Emit(types.Event{Kind: types.EventSnapshot, Timestamp: at, Fields: map[string]any{"id": "abc"}})

	select {
	case m := <-broker.msgs:
		if m.topic != "lab/aether/snapshot" {
			t.Fatalf("topic = %q", m.topic)
		}
		var ev types.Event
		if err := json.Unmarshal(m.payload, &ev); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if ev.Kind != types.EventSnapshot || ev.Fields["id"] != "abc" || !ev.Timestamp.Equal(at) {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing published")
	}
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	e := newWithPublisher(Config{}, &fakeBroker{msgs: make(chan message, 1)})
	for range queueSize + 3 {
		e.Emit(types.Event{Kind: types.EventMotion})
	}
	if _, dropped, _ := e.Stats(); dropped != 3 {
		t.Fatalf("dropped = %d, want 3", dropped)
	}
}

func TestPublishErrorsAreCounted(t *testing.T) {
	e := newWithPublisher(Config{}, &fakeBroker{err: errors.New("broker gone")})
	if err := e.publish(types.Event{Kind: types.EventTargetLost}); err == nil {
		t.Fatalf("expected publish error")
	}
	e.setConnected(false)
	if err := e.publish(types.Event{Kind: types.EventTargetLost}); err == nil {
		t.Fatalf("expected not-connected error")
	}
}

func TestBrokerURL(t *testing.T) {
	tests := map[string]string{
		"localhost:1883":      "tcp://localhost:1883",
		"ssl://broker:8883":   "ssl://broker:8883",
		"ws://broker:80/mqtt": "ws://broker:80/mqtt",
	}
	for in, want := range tests {
		if got := brokerURL(in); got != want {
			t.Fatalf("brokerURL(%q) = %q, want %q", in, got, want)
		}
	}
}
