// Package idalloc provides monotonic id counters shared by timelines and forests.
package idalloc

import "sync"

// Allocator hands out strictly increasing ids. The first call to Next returns 1,
// so the zero value of T can be used as a "no id" sentinel by callers.
//
// Next and Current are safe for concurrent use. Set and Reset are administrative
// overrides meant for single-threaded reconstruction.
type Allocator[T ~uint32 | ~uint64] struct {
	mu      sync.Mutex
	current T
}

// New returns an allocator whose next id is 1.
func New[T ~uint32 | ~uint64]() *Allocator[T] {
	return &Allocator[T]{}
}

// NewAt returns an allocator whose next id is start+1.
func NewAt[T ~uint32 | ~uint64](start T) *Allocator[T] {
	return &Allocator[T]{current: start}
}

// Next advances the counter and returns the new value.
func (a *Allocator[T]) Next() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current++
	return a.current
}

// Current returns the last value handed out without advancing.
func (a *Allocator[T]) Current() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Set overrides the counter so the next id is v+1.
func (a *Allocator[T]) Set(v T) {
	a.current = v
}

// Reset rewinds the counter to zero.
func (a *Allocator[T]) Reset() {
	a.current = 0
}
