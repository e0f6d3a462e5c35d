// Package event implements the completion event: a single-assignment,
// shareable, payload-free asynchronous signal. An event is resolved exactly
// once, with success or with an error; continuations registered before
// resolution run when it resolves, continuations registered after run
// inline. Resolving never blocks the resolver.
package event

import (
	"context"
	"sync"
)

// Event is a single-assignment completion signal. The zero value is not
// usable; construct events with New, Ok or Fail.
type Event struct {
	mu        sync.Mutex
	resolved  bool
	err       error
	callbacks []func(error)
	done      chan struct{}
}

// New returns an unresolved event.
func New() *Event {
	return &Event{done: make(chan struct{})}
}

// okEvent is the shared pre-resolved success event. It is immutable: a
// resolved event only ever runs continuations inline.
var okEvent = func() *Event {
	e := New()
	e.Signal()
	return e
}()

// Ok returns a shared event that is already resolved with success. Units
// whose work completes on the calling thread return it to avoid allocating
// an event per execution.
func Ok() *Event {
	return okEvent
}

// Fail returns a fresh event already resolved with the given error.
func Fail(err error) *Event {
	e := New()
	e.SignalError(err)
	return e
}

// Signal resolves the event with success. Resolving an event twice is an
// invariant violation and panics.
func (e *Event) Signal() {
	e.resolve(nil)
}

// SignalError resolves the event with the given error. A nil error is
// equivalent to Signal.
func (e *Event) SignalError(err error) {
	e.resolve(err)
}

func (e *Event) resolve(err error) {
	e.mu.Lock()
	if e.resolved {
		e.mu.Unlock()
		panic("event: resolved twice")
	}
	e.resolved = true
	e.err = err
	callbacks := e.callbacks
	e.callbacks = nil
	close(e.done)
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}
}

// AndThen registers a continuation invoked with the event's error (nil on
// success). If the event is already resolved the continuation runs inline
// on the calling goroutine; otherwise it runs on the resolver's goroutine,
// in registration order.
func (e *Event) AndThen(fn func(error)) {
	e.mu.Lock()
	if !e.resolved {
		e.callbacks = append(e.callbacks, fn)
		e.mu.Unlock()
		return
	}
	err := e.err
	e.mu.Unlock()
	fn(err)
}

// Done returns a channel closed when the event resolves.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Resolved reports whether the event has been resolved.
func (e *Event) Resolved() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolved
}

// Err returns the event's error. It is only meaningful once the event has
// resolved; before that it returns nil.
func (e *Event) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Wait blocks until the event resolves or the context is done, and returns
// the event's error or the context's. It is a convenience for callers at
// the boundary of the asynchronous core; the core itself never blocks.
func (e *Event) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
