// Package cache implements the §4.6 asset LRU cache: a typed LRU heap of futures keyed by
// filename, and a higher-level composition that pulls a scaffold and a material from two
// such heaps to build a renderer. Grounded on §9's "map to a future/promise primitive...
// with explicit TryActualize semantics" -- the teacher itself is a synchronous per-frame
// engine with no asynchronous asset loading, so Future is new code, built the way the
// teacher builds everything else: a small, explicitly-stated state machine guarded by a
// mutex, no channels-of-channels cleverness.
package cache

import "sync"

// State is one of a Future's three lifecycle states (§4.6: "The future's state
// transitions through {Pending, Ready(T), Invalid}").
type State int

const (
	StatePending State = iota
	StateReady
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateInvalid:
		return "invalid"
	default:
		return "pending"
	}
}

// Future is a single-producer, multi-consumer one-shot result. It is not cancellable (§5
// "Asset futures are not cancellable from outside; they run to completion... and a dropped
// consumer simply releases its reference").
type Future[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
}

// NewFuture returns a pending Future with no producer attached yet; call resolve/fail
// exactly once to complete it.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve completes the future successfully. Must be called at most once.
func (f *Future[T]) resolve(v T) {
	f.mu.Lock()
	if f.state != StatePending {
		f.mu.Unlock()
		return
	}
	f.value = v
	f.state = StateReady
	f.mu.Unlock()
	close(f.done)
}

// fail completes the future with an error, transitioning it to Invalid (§7 "Asset not
// found / invalidated. Propagates through the asset future as Invalid(dep-val, log)").
func (f *Future[T]) fail(err error) {
	f.mu.Lock()
	if f.state != StatePending {
		f.mu.Unlock()
		return
	}
	f.err = err
	f.state = StateInvalid
	f.mu.Unlock()
	close(f.done)
}

// State returns the future's current lifecycle state without blocking.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// TryActualize is a non-blocking poll: it returns (value, true) only once the future has
// resolved to Ready. A Pending or Invalid future returns the zero value and false.
func (f *Future[T]) TryActualize() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateReady {
		return f.value, true
	}
	var zero T
	return zero, false
}

// Actualize blocks until the future leaves Pending, then returns its value or error.
func (f *Future[T]) Actualize() (T, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}
