// Package history provides the fixed-capacity FIFO buffers that back the
// dashboard trend charts and the kernel log panel.
package history

// Ring is a fixed-capacity FIFO. Pushing into a full ring evicts the oldest
// element. A Ring has a single writer; readers get copies via Snapshot.
type Ring[T any] struct {
	slots []T
	start int // index of the oldest element
	count int
}

// NewRing allocates a ring holding at most capacity elements. A capacity
// below 1 is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.count < len(r.slots) {
		r.slots[(r.start+r.count)%len(r.slots)] = v
		r.count++
		return
	}
	r.slots[r.start] = v
	r.start = (r.start + 1) % len(r.slots)
}

// Snapshot returns the contents oldest to newest.
func (r *Ring[T]) Snapshot() []T {
	return r.Last(r.count)
}

// Last returns the newest n elements, oldest to newest.
func (r *Ring[T]) Last(n int) []T {
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	skip := r.count - n
	for i := range n {
		out[i] = r.slots[(r.start+skip+i)%len(r.slots)]
	}
	return out
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.slots) }
