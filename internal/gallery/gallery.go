// Package gallery keeps the snapshots captured from the live feed, most
// recent first.
package gallery

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

const (
	// DefaultView is the number of entries the thumbnail strip shows.
	DefaultView = 6
	// DefaultCapacity bounds the number of stored entries.
	DefaultCapacity = 64
)

// Entry is one captured snapshot. Entries are immutable once added.
type Entry struct {
	ID         string
	CapturedAt time.Time
	JPEG       []byte
	ETag       string
}

// Label formats the capture time the way the thumbnail strip shows it.
func (e Entry) Label() string {
	return e.CapturedAt.Format("15:04:05")
}

// Gallery is written by the update loop and read by HTTP handlers.
type Gallery struct {
	mu       sync.RWMutex
	entries  []Entry // newest first
	capacity int
	total    uint64
}

// New returns a Gallery storing at most capacity entries.
func New(capacity int) *Gallery {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Gallery{capacity: capacity}
}

// Add stores an owned copy of jpeg captured at t at the front of the gallery
// and returns the new entry. The oldest entry is dropped once capacity is
// exceeded.
func (g *Gallery) Add(t time.Time, jpeg []byte) Entry {
	data := make([]byte, len(jpeg))
	copy(data, jpeg)
	e := Entry{
		ID:         uuid.NewString(),
		CapturedAt: t,
		JPEG:       data,
		ETag:       fmt.Sprintf(`"%016x"`, xxh3.Hash(data)),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append([]Entry{e}, g.entries...)
	if len(g.entries) > g.capacity {
		g.entries = g.entries[:g.capacity]
	}
	g.total++
	return e
}

// View returns up to n of the most recent entries, newest first.
func (g *Gallery) View(n int) []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n > len(g.entries) {
		n = len(g.entries)
	}
	if n < 0 {
		n = 0
	}
	out := make([]Entry, n)
	copy(out, g.entries[:n])
	return out
}

// Get looks up an entry by ID.
func (g *Gallery) Get(id string) (Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of stored entries.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Total returns the number of captures since start, including evicted ones.
func (g *Gallery) Total() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.total
}
