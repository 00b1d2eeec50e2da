package voice

import "time"

// DefaultCooldown is the minimum gap between debounced announcements.
const DefaultCooldown = 5 * time.Second

// Phrases spoken by the dashboard.
const (
	PhraseTargetConfirmed  = "target confirmed"
	PhraseTargetLost       = "target lost"
	PhraseSnapshotCaptured = "snapshot captured"
)

// Queue is the part of Notifier the announcer needs.
type Queue interface {
	Enqueue(phrase string) bool
}

// Announcer debounces lock-state announcements. It is owned by the update
// loop and is not safe for concurrent use.
type Announcer struct {
	queue    Queue
	cooldown time.Duration
	last     time.Time
}

// NewAnnouncer returns an announcer feeding q. A non-positive cooldown uses
// DefaultCooldown.
func NewAnnouncer(q Queue, cooldown time.Duration) *Announcer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Announcer{queue: q, cooldown: cooldown}
}

// Announce enqueues phrase when at least the cooldown has passed since the
// last announcement. The time is recorded whenever the cooldown check
// passes, even if the queue rejects the phrase. It reports whether the
// cooldown check passed.
func (a *Announcer) Announce(now time.Time, phrase string) bool {
	if !a.last.IsZero() && now.Sub(a.last) < a.cooldown {
		return false
	}
	a.last = now
	a.queue.Enqueue(phrase)
	return true
}

// Say enqueues phrase without debouncing.
func (a *Announcer) Say(phrase string) bool {
	return a.queue.Enqueue(phrase)
}

// LastSpoken returns the time of the last announcement that passed the
// cooldown, or the zero time.
func (a *Announcer) LastSpoken() time.Time {
	return a.last
}
