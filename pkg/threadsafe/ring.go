package threadsafe

import "sync"

// Ring keeps the last capacity items appended to it.
type Ring[T any] struct {
	inner    []T
	capacity int
	mux      *sync.RWMutex
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		inner:    make([]T, 0, capacity),
		capacity: capacity,
		mux:      &sync.RWMutex{},
	}
}

func (r *Ring[T]) Size() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return len(r.inner)
}

func (r *Ring[T]) Append(values ...T) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.inner = append(r.inner, values...)
	if overflow := len(r.inner) - r.capacity; overflow > 0 {
		kept := make([]T, r.capacity, r.capacity)
		copy(kept, r.inner[overflow:])
		r.inner = kept
	}
}

// Snapshot returns the items oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mux.RLock()
	defer r.mux.RUnlock()
	res := make([]T, len(r.inner))
	copy(res, r.inner)
	return res
}
