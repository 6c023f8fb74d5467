// Package lazy provides a value that is initialized at most once, on first
// use, by whichever goroutine needs it first.
package lazy

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Func is an alias for an initializer that can be managed by a [Value].
type Func[T any] func(context.Context) (T, error)

// A Value holds the result of an initializer that runs at most once to
// completion, no matter how many goroutines call [Value.Get] concurrently.
//
// The first goroutine to call Get runs the initializer. Any goroutines that
// call Get while it is running block until it finishes, then share its
// result. Once the initializer has returned, its value and error are fixed,
// and later calls to Get report them without blocking.
//
// If the goroutine running the initializer gives up because its context
// ended, its attempt does not count: the initializer is considered not to
// have completed, and one of the waiting goroutines (if any) runs it again.
// The initializer is never run by more than one goroutine at a time.
type Value[T any] struct {
	init Func[T] // read-only after construction

	μ      sync.Mutex
	waits  []chan struct{} // closed when the running attempt finishes
	active bool            // an attempt is in progress
	done   bool            // the result is determined
	value  T
	err    error
}

// New constructs a new [Value] whose contents are produced by init.
func New[T any](init Func[T]) *Value[T] { return &Value[T]{init: init} }

// Get returns the value produced by the initializer, running it first if no
// result has been determined yet. Get is safe for concurrent use by multiple
// goroutines.
//
// If ctx ends before a result is determined, Get returns a zero value and
// the context error. A panic in the initializer is reported as an error
// result.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	var zero T

	v.μ.Lock()
	defer v.μ.Unlock()
	for !v.done {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if !v.active {
			v.runLocked(ctx)
			continue
		}

		// Someone else is running the initializer; wait for them to finish
		// and then check again, since they may have given up.
		ready := make(chan struct{})
		v.waits = append(v.waits, ready)
		v.μ.Unlock()
		select {
		case <-ctx.Done():
		case <-ready:
		}
		v.μ.Lock()
	}
	return v.value, v.err
}

// Done reports whether the result of v has been determined.
func (v *Value[T]) Done() bool {
	v.μ.Lock()
	defer v.μ.Unlock()
	return v.done
}

// runLocked makes one attempt to run the initializer outside the lock, and
// records its result if the attempt completes. The caller must hold v.μ.
func (v *Value[T]) runLocked(ctx context.Context) {
	v.active = true
	v.μ.Unlock() // release the lock while running
	val, err := v.runProtect(ctx)
	v.μ.Lock()
	v.active = false

	// The attempt completes if the initializer succeeded, or reported an error
	// while ctx was still alive (meaning the error is its own). Otherwise, ctx
	// ended under it and some waiter must try again.
	if err == nil || ctx.Err() == nil {
		v.value, v.err, v.done = val, err, true
	}
	for _, w := range v.waits {
		close(w)
	}
	v.waits = nil
}

func (v *Value[T]) runProtect(ctx context.Context) (_ T, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("panic in initializer: %v\n%s", x, string(debug.Stack()))
		}
	}()
	return v.init(ctx)
}

// Adapt adapts a function to a [Func]. The concrete type of f must be one of:
//
//	func() error
//	func(context.Context) error
//	func() T
//	func(context.Context) T
//	func() (T, error)
//	func(context.Context) (T, error)
//
// Functions that do not produce a value report the zero value of T.
// Adapt panics if f does not have one of these types.
func Adapt[T any](f any) Func[T] {
	switch t := f.(type) {
	case Func[T]:
		return t
	case func(context.Context) (T, error):
		return t
	case func() (T, error):
		return func(context.Context) (T, error) { return t() }
	case func(context.Context) T:
		return func(ctx context.Context) (T, error) { return t(ctx), nil }
	case func() T:
		return func(context.Context) (T, error) { return t(), nil }
	case func(context.Context) error:
		return func(ctx context.Context) (_ T, err error) { err = t(ctx); return }
	case func() error:
		return func(context.Context) (_ T, err error) { err = t(); return }
	default:
		panic(fmt.Sprintf("lazy: cannot adapt %T", f))
	}
}
