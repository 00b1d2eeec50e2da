package webmonitor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aether-core/dashboard/internal/logger"
	"github.com/aether-core/dashboard/pkg/types"
)

// clientBuffer is the number of items queued per subscriber before items are
// dropped for that subscriber.
const clientBuffer = 2

// Broadcaster fans values out to subscribers. Publish never blocks: a slow
// subscriber misses values instead of stalling the publisher.
type Broadcaster[T any] struct {
	name    string
	mu      sync.Mutex
	clients map[int]chan T
	nextID  int
	dropped uint64
	closed  bool
}

// NewBroadcaster creates a broadcaster; name tags its log lines.
func NewBroadcaster[T any](name string) *Broadcaster[T] {
	return &Broadcaster[T]{name: name, clients: make(map[int]chan T)}
}

// Subscribe adds a new client and returns a channel for receiving values.
// The channel is closed on Unsubscribe or Close.
func (b *Broadcaster[T]) Subscribe() (int, <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan T, clientBuffer)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.clients[id] = ch

	logger.Debug(b.name, "Client #%d subscribed (total clients: %d)", id, len(b.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (b *Broadcaster[T]) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		logger.Debug(b.name, "Client #%d unsubscribed (remaining clients: %d)", id, len(b.clients))
	}
}

// Publish offers v to every subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.clients {
		select {
		case ch <- v:
		default:
			b.dropped++
		}
	}
}

// Clients returns the number of subscribers.
func (b *Broadcaster[T]) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Broadcaster[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close disconnects every subscriber. Later subscriptions get a closed
// channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // google.protobuf.Struct, base64 encoded for SSE
}

// Serialize encodes payload as JSON and as a base64 protobuf Struct.
func Serialize(payload any) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	st := &structpb.Struct{}
	if err := st.UnmarshalJSON(jsonData); err != nil {
		return nil, fmt.Errorf("convert to struct: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal protobuf: %w", err)
	}
	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// PhraseEvent is the payload of /api/voice/stream.
type PhraseEvent struct {
	Phrase    string  `json:"phrase"`
	Timestamp float64 `json:"timestamp"`
}

func newPhraseEvent(phrase string, at time.Time) PhraseEvent {
	return PhraseEvent{Phrase: phrase, Timestamp: float64(at.UnixNano()) / 1e9}
}

func serializeStatus(st types.Status) (*SerializedEvent, error) {
	return Serialize(st)
}
