// Package trigger implements an edge-triggered condition variable built on
// channels, so that waiting can be combined with other events in a select.
package trigger

import "sync"

// Cond is an edge-triggered condition shared by multiple goroutines.
//
// The Ready method returns a channel that is closed by the next call to
// Signal. A goroutine that calls Ready after a Signal waits for the one
// following it; signals are not remembered.
//
// A zero Cond is ready for use, but must not be copied after any of its
// methods have been called.
type Cond struct {
	μ  sync.Mutex
	ch chan struct{} // lazily created by the first waiter
}

// New constructs a new Cond.
func New() *Cond { return new(Cond) }

// Signal wakes all goroutines currently waiting on a channel from Ready.
// If there are no waiters, Signal has no effect.
func (c *Cond) Signal() {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
}

// Ready returns a channel that is closed when c is next signaled.
func (c *Cond) Ready() <-chan struct{} {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.ch == nil {
		c.ch = make(chan struct{})
	}
	return c.ch
}
