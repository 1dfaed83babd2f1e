// Package deferred provides a single-assignment result whose computation is
// started lazily, the first time a consumer asks for the value.
//
// A Result settles at most once. The first call to Write or Error wins and
// every later call reports false without changing anything, so racing
// producers (a response, a timer, an abort) can all try to settle the same
// Result safely.
package deferred

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrNilError replaces a nil error passed to Error.
var ErrNilError = errors.New("deferred: settled with nil error")

type state int

const (
	pending state = iota
	fulfilled
	rejected
)

type waiter[T any] struct {
	onValue func(T)
	onError func(error)
}

// Result is a single-assignment future. The zero value is not usable; create
// one with New, Resolved or Failed.
type Result[T any] struct {
	mu      sync.Mutex
	state   state
	value   T
	err     error
	done    chan struct{}
	waiters []waiter[T]

	need func(*Result[T])
	once sync.Once
}

// New returns a pending Result. onNeed runs exactly once, on the first call
// to Read or Then, and is expected to eventually settle the Result. It may be
// nil for results settled by an outside producer.
func New[T any](onNeed func(*Result[T])) *Result[T] {
	return &Result[T]{
		done: make(chan struct{}),
		need: onNeed,
	}
}

// Resolved returns a Result already fulfilled with v.
func Resolved[T any](v T) *Result[T] {
	r := New[T](nil)
	r.Write(v)
	return r
}

// Failed returns a Result already rejected with err.
func Failed[T any](err error) *Result[T] {
	r := New[T](nil)
	r.Error(err)
	return r
}

// Write fulfills the Result with v. It reports whether this call settled it.
func (r *Result[T]) Write(v T) bool {
	return r.settle(fulfilled, v, nil)
}

// Error rejects the Result with err. It reports whether this call settled it.
func (r *Result[T]) Error(err error) bool {
	if err == nil {
		err = ErrNilError
	}
	var zero T
	return r.settle(rejected, zero, err)
}

func (r *Result[T]) settle(st state, v T, err error) bool {
	r.mu.Lock()
	if r.state != pending {
		r.mu.Unlock()
		return false
	}
	r.state, r.value, r.err = st, v, err
	waiters := r.waiters
	r.waiters = nil
	close(r.done)
	r.mu.Unlock()

	for _, w := range waiters {
		r.dispatch(w)
	}
	return true
}

func (r *Result[T]) dispatch(w waiter[T]) {
	switch r.state {
	case fulfilled:
		if w.onValue != nil {
			w.onValue(r.value)
		}
	case rejected:
		if w.onError != nil {
			w.onError(r.err)
		}
	}
}

// Start runs the onNeed function if it has not run yet.
func (r *Result[T]) Start() {
	r.once.Do(func() {
		if r.need != nil {
			r.need(r)
		}
	})
}

// Read starts the computation if needed and blocks until the Result settles
// or ctx is done.
func (r *Result[T]) Read(ctx context.Context) (T, error) {
	r.Start()
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then starts the computation if needed and registers callbacks for the
// outcome. Callbacks run on the goroutine that settles the Result, or
// immediately if it is already settled. Either callback may be nil.
func (r *Result[T]) Then(onValue func(T), onError func(error)) {
	r.Start()
	w := waiter[T]{onValue: onValue, onError: onError}

	r.mu.Lock()
	if r.state == pending {
		r.waiters = append(r.waiters, w)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.dispatch(w)
}

// Done returns a channel closed once the Result settles. It does not start
// the computation.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Settled reports whether the Result has been written or rejected.
func (r *Result[T]) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Map returns a Result that, once needed, waits for r and transforms its
// value with fn. Errors from r or fn reject the returned Result.
func Map[T, U any](r *Result[T], fn func(T) (U, error)) *Result[U] {
	return New(func(out *Result[U]) {
		r.Then(func(v T) {
			u, err := fn(v)
			if err != nil {
				out.Error(err)
				return
			}
			out.Write(u)
		}, func(err error) {
			out.Error(err)
		})
	})
}
