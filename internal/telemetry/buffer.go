package telemetry

import "sync"

// CircularBuffer keeps the most recent items up to a fixed capacity.
type CircularBuffer[T any] struct {
	mu    sync.Mutex
	ring  []T
	next  int
	full  bool
	limit int
}

// NewCircularBuffer creates a buffer of the given capacity, 20 when
// capacity is not positive.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 20
	}
	return &CircularBuffer[T]{ring: make([]T, capacity), limit: capacity}
}

// Add stores item, overwriting the oldest one when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring[b.next] = item
	b.next++
	if b.next == b.limit {
		b.next = 0
		b.full = true
	}
}

// Items returns a copy of the buffered items, oldest first. Never nil.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]T{}, b.ring[:b.next]...)
	}
	out := make([]T, 0, b.limit)
	out = append(out, b.ring[b.next:]...)
	return append(out, b.ring[:b.next]...)
}

// Size returns how many items are buffered.
func (b *CircularBuffer[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.full {
		return b.limit
	}
	return b.next
}
