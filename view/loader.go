// Package view holds state for screens that load data from the backend.
package view

import "sync"

// Ticket identifies one load started with Loader.Begin
type Ticket uint64

// Loader holds the latest value loaded for a screen. A response only lands if
// no load was started, and no invalidation happened, after its own Begin, so a
// slow response for a superseded request never overwrites newer state.
type Loader[T any] struct {
	gen     uint64
	value   T
	err     error
	loaded  bool
	loading bool
	mu      sync.Mutex
}

// Begin starts a load and returns its ticket
func (l *Loader[T]) Begin() Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	l.loading = true
	return Ticket(l.gen)
}

// Resolve stores the outcome of the load identified by t. It returns false,
// and changes nothing, when t is stale.
func (l *Loader[T]) Resolve(t Ticket, value T, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if uint64(t) != l.gen {
		return false
	}

	l.loading = false
	l.loaded = true
	l.value = value
	l.err = err
	return true
}

// Invalidate forgets the current value and makes every outstanding ticket stale
func (l *Loader[T]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	l.gen++
	l.value = zero
	l.err = nil
	l.loaded = false
	l.loading = false
}

// Snapshot returns the current value, whether a load is in flight, and the
// error of the load that produced the value
func (l *Loader[T]) Snapshot() (value T, loading bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.value, l.loading, l.err
}

// Loaded returns true once a load has landed since the last invalidation
func (l *Loader[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loaded
}

// Load runs fn for a new ticket and resolves it with the result. It returns
// what fn produced and whether it was applied.
func (l *Loader[T]) Load(fn func() (T, error)) (value T, applied bool, err error) {
	t := l.Begin()
	value, err = fn()
	return value, l.Resolve(t, value, err), err
}
