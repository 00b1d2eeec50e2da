// Package voice speaks short status phrases in the background without ever
// blocking the update loop.
package voice

import (
	"context"
	"sync"

	"github.com/aether-core/dashboard/internal/logger"
)

// MaxPending is the number of phrases that may wait for the speaker.
const MaxPending = 2

var log = logger.For("Voice")

// Speaker turns a phrase into sound. Say blocks until the phrase is spoken
// or ctx is cancelled.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Result describes the outcome of one spoken phrase.
type Result struct {
	Phrase string
	Err    error
}

// Notifier hands phrases from the loop to a single speaking worker through a
// bounded queue.
type Notifier struct {
	speaker Speaker
	queue   chan string

	// OnResult, when set before Start, is called by the worker after each
	// phrase.
	OnResult func(Result)

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewNotifier creates a notifier speaking through s.
func NewNotifier(s Speaker) *Notifier {
	return &Notifier{
		speaker: s,
		queue:   make(chan string, MaxPending),
	}
}

// Enqueue queues phrase without blocking. It returns false when MaxPending
// phrases are already waiting or the notifier has stopped.
func (n *Notifier) Enqueue(phrase string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return false
	}
	select {
	case n.queue <- phrase:
		return true
	default:
		log.Debug("queue full, dropped %q", phrase)
		return false
	}
}

// Pending returns the number of phrases waiting for the worker.
func (n *Notifier) Pending() int {
	return len(n.queue)
}

// Start launches the worker. It runs until ctx is cancelled or Stop is
// called. Calling Start twice has no effect.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done != nil || n.stopped {
		return
	}
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	go n.run(ctx, n.done)
}

func (n *Notifier) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case phrase := <-n.queue:
			err := n.speaker.Say(ctx, phrase)
			if err != nil && ctx.Err() == nil {
				log.Debug("speak %q: %v", phrase, err)
			}
			if n.OnResult != nil {
				n.OnResult(Result{Phrase: phrase, Err: err})
			}
		}
	}
}

// Stop rejects further phrases, cancels the worker and waits for it to exit.
// Phrases still queued are discarded.
func (n *Notifier) Stop() {
	n.mu.Lock()
	n.stopped = true
	cancel, done := n.cancel, n.done
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
