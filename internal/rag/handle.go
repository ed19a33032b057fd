package rag

import (
	"context"
	"fmt"
	"sync"
)

// attempt is one run of an initializer. done is closed once val and err are
// set.
type attempt[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// failed reports whether the attempt has finished with an error.
func (a *attempt[T]) failed() bool {
	select {
	case <-a.done:
		return a.err != nil
	default:
		return false
	}
}

// Handle is a lazily initialized, process-wide client handle. At most one
// initialization runs at a time; every Init or Get issued while it runs
// waits for it and observes the same value or error. A successful
// initialization is final. A failed one is reported to its waiters and by
// Get, and the next Init starts a fresh attempt.
// Get before any Init fails fast with ErrNotInitialized.
type Handle[T any] struct {
	name string
	mu   sync.Mutex
	cur  *attempt[T]
}

// NewHandle returns an uninitialized handle. name labels errors and logs.
func NewHandle[T any](name string) *Handle[T] {
	return &Handle[T]{name: name}
}

// Ready returns a handle that is already initialized with val.
func Ready[T any](name string, val T) *Handle[T] {
	a := &attempt[T]{done: make(chan struct{}), val: val}
	close(a.done)
	return &Handle[T]{name: name, cur: a}
}

// Name returns the label the handle was created with.
func (h *Handle[T]) Name() string { return h.name }

// Init runs fn unless an initialization is in flight or has succeeded, in
// which case it waits for that one and shares its outcome.
func (h *Handle[T]) Init(ctx context.Context, fn func(ctx context.Context) (T, error)) error {
	h.mu.Lock()
	a := h.cur
	run := a == nil || a.failed()
	if run {
		a = &attempt[T]{done: make(chan struct{})}
		h.cur = a
	}
	h.mu.Unlock()

	if run {
		a.val, a.err = fn(ctx)
		close(a.done)
	} else {
		<-a.done
	}
	if a.err != nil {
		return fmt.Errorf("rag: %s initialization failed: %w", h.name, a.err)
	}
	return nil
}

// Get returns the initialized value, waiting for an in-flight Init. After a
// failed attempt it returns that attempt's error until a later Init succeeds.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	var zero T
	h.mu.Lock()
	a := h.cur
	h.mu.Unlock()
	if a == nil {
		return zero, fmt.Errorf("rag: %s: %w", h.name, ErrNotInitialized)
	}
	select {
	case <-a.done:
	case <-ctx.Done():
		return zero, fmt.Errorf("rag: waiting for %s: %w", h.name, ctx.Err())
	}
	if a.err != nil {
		return zero, fmt.Errorf("rag: %s initialization failed: %w", h.name, a.err)
	}
	return a.val, nil
}
