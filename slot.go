// Package slot implements a single-slot handoff channel between one producer
// and one consumer.
//
// A [Channel] holds at most one value at a time. The producer calls
// [Channel.Publish] to store a value, blocking while the slot is full, and the
// consumer calls [Channel.Take] to remove it, blocking while the slot is
// empty. When the producer has no more values it calls [Channel.Close]; the
// consumer then drains any pending value and receives [ErrEndOfStream].
//
// Values are delivered in the order they were published, and each published
// value is delivered exactly once. How blocked callers wait is selected by a
// [Strategy] when the channel is constructed, and does not affect these
// guarantees.
package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/creachadair/slot/trigger"
	"go.uber.org/zap"
)

var (
	// ErrInvalidState is reported for operations the channel cannot accept
	// in its current state: publishing to a closed channel, or using a nil
	// channel. Errors reported by this package wrap it with detail; use
	// errors.Is to check for it.
	ErrInvalidState = errors.New("invalid channel state")

	// ErrEndOfStream is returned by Take when the channel is closed and no
	// value is pending. Like io.EOF, it signals graceful termination rather
	// than a failure.
	ErrEndOfStream = errors.New("end of stream")

	errClosed = fmt.Errorf("%w: channel is closed", ErrInvalidState)
	errNil    = fmt.Errorf("%w: channel is not initialized", ErrInvalidState)
)

// A Channel is a capacity-one handoff from a producer to a consumer.
//
// A zero Channel is ready for use with the CondVar strategy and default
// settings, but must not be copied after first use. Use [New] to select
// another strategy.
type Channel[T any] struct {
	cfg *Config // read-only after construction; nil means defaults

	// μ protects the fields below.
	μ      sync.Mutex
	value  T    // meaningful only when ready
	ready  bool // value holds an unconsumed item
	closed bool // no further values will be published
	nPub   uint64
	nTake  uint64

	canTake trigger.Cond // signaled when ready or closed becomes true
	canPub  trigger.Cond // signaled when ready becomes false or closed becomes true
}

// New constructs a new empty Channel with the given settings. If cfg == nil,
// defaults are used. New panics if cfg specifies an unknown strategy.
func New[T any](cfg *Config) *Channel[T] {
	if cfg == nil {
		return new(Channel[T])
	}
	if !cfg.Strategy.valid() {
		panic(fmt.Sprintf("slot: unknown strategy %v", cfg.Strategy))
	}
	cp := *cfg
	return &Channel[T]{cfg: &cp}
}

// Publish stores v in c, blocking while c holds an unconsumed value. It
// returns nil once v is stored and visible to the consumer.
//
// If c is closed, either before the call or while it is blocked, Publish
// reports an error wrapping ErrInvalidState and does not modify c. If ctx
// ends before v is stored, Publish returns the context error.
func (c *Channel[T]) Publish(ctx context.Context, v T) error {
	if c == nil {
		return errNil
	}
	c.μ.Lock()
	defer c.μ.Unlock()

	if err := c.awaitLocked(ctx, &c.canPub, func() bool { return c.closed || !c.ready }); err != nil {
		return err
	}
	if c.closed {
		return errClosed
	}
	c.value, c.ready = v, true
	c.nPub++
	c.log().Debug("publish", zap.Uint64("seq", c.nPub), zap.Stringer("strategy", c.strategy()))
	c.canTake.Signal()
	return nil
}

// Take removes and returns the value held by c, blocking until one is
// available. If c is closed and no value is pending, Take returns a zero
// value and ErrEndOfStream. If ctx ends first, Take returns the context
// error and consumes nothing.
func (c *Channel[T]) Take(ctx context.Context) (T, error) {
	var zero T
	if c == nil {
		return zero, errNil
	}
	c.μ.Lock()
	defer c.μ.Unlock()

	if err := c.awaitLocked(ctx, &c.canTake, func() bool { return c.ready || c.closed }); err != nil {
		return zero, err
	}
	if !c.ready {
		return zero, ErrEndOfStream
	}
	v := c.value
	c.value, c.ready = zero, false // release the reference eagerly
	c.nTake++
	c.log().Debug("take", zap.Uint64("seq", c.nTake), zap.Stringer("strategy", c.strategy()))
	c.canPub.Signal()
	return v, nil
}

// Close marks c as closed, so that no further values may be published. A
// value published before Close remains available to Take. Any goroutines
// blocked in Take or Publish are woken to observe the closure.
//
// Close is idempotent, and has no effect on a nil channel.
func (c *Channel[T]) Close() {
	if c == nil {
		return
	}
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.log().Debug("close",
		zap.Bool("pending", c.ready),
		zap.Uint64("published", c.nPub),
		zap.Stringer("strategy", c.strategy()),
	)
	c.canTake.Signal()
	c.canPub.Signal()
}

// Stats is a snapshot of the state of a [Channel].
type Stats struct {
	Published uint64 // values successfully published
	Taken     uint64 // values successfully taken
	Pending   bool   // a value is waiting to be taken
	Closed    bool   // the channel has been closed
}

// Stat returns a snapshot of the current state of c.
func (c *Channel[T]) Stat() Stats {
	if c == nil {
		return Stats{}
	}
	c.μ.Lock()
	defer c.μ.Unlock()
	return Stats{Published: c.nPub, Taken: c.nTake, Pending: c.ready, Closed: c.closed}
}

func (c *Channel[T]) log() *zap.Logger { return c.cfg.logger() }

func (c *Channel[T]) strategy() Strategy {
	if c.cfg == nil {
		return CondVar
	}
	return c.cfg.Strategy
}

// awaitLocked blocks until ok reports true or ctx ends. The caller must hold
// c.μ, which is released while waiting and held again when awaitLocked
// returns. The predicate is re-checked after every wakeup, whatever its
// cause.
func (c *Channel[T]) awaitLocked(ctx context.Context, cond *trigger.Cond, ok func() bool) error {
	for !ok() {
		if err := ctx.Err(); err != nil {
			return err
		}

		// N.B. The wake channel must be obtained while c.μ is held: the
		// goroutine that makes ok true also holds c.μ when it signals, so
		// the signal cannot fall between our check and our wait.
		var wake <-chan struct{}
		if c.strategy() != Polling {
			wake = cond.Ready()
		}

		// Reacquire with a defer so that a panic in OnTimeout reaches the
		// caller with c.μ held.
		err := func() error {
			c.μ.Unlock()
			defer c.μ.Lock()
			return c.pause(ctx, wake)
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// pause blocks until wake is closed, ctx ends, or the strategy's interval
// elapses. It must be called without c.μ held.
func (c *Channel[T]) pause(ctx context.Context, wake <-chan struct{}) error {
	var d time.Duration
	switch c.strategy() {
	case Polling:
		d = c.cfg.pollInterval()
	case CondVarTimeout:
		d = c.cfg.timeout()
	}

	var expired <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wake:
	case <-expired:
		if c.strategy() == CondVarTimeout && c.cfg.OnTimeout != nil {
			c.cfg.OnTimeout()
		}
	}
	return nil
}
