// Package storage holds the pipeline's in-memory stores: a bounded FIFO
// ring used for the fog buffer, ingestion history and predictor window,
// and an append-only alert log. Nothing here is persisted.
package storage

import "sync"

// Ring is a bounded FIFO buffer. Pushing beyond capacity evicts the
// oldest entry; the newest push is never dropped. Safe for concurrent use.
type Ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) >= r.capacity {
		r.items = r.items[1:]
	}
	r.items = append(r.items, item)
}

// Items returns a copy of the buffer contents in arrival order.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Recent returns a copy of the last count items in arrival order. A count
// of zero or beyond the current length returns everything.
func (r *Ring[T]) Recent(count int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if count <= 0 || count > len(r.items) {
		count = len(r.items)
	}
	out := make([]T, count)
	copy(out, r.items[len(r.items)-count:])
	return out
}

func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = r.items[:0]
}
