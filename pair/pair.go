// Package pair runs one producer and one consumer over a shared
// [slot.Channel].
package pair

import (
	"context"
	"errors"

	"github.com/creachadair/slot"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// A Producer generates values by calling publish for each one in order.
// If publish reports an error, the producer should stop and return it.
type Producer[T any] func(ctx context.Context, publish func(T) error) error

// A Consumer is called once for each value taken from the channel, in the
// order the values were published.
type Consumer[T any] func(ctx context.Context, v T) error

// Run runs produce and consume concurrently against ch, and waits for both
// to finish. When produce returns, ch is closed; consume is then called for
// any value still pending, after which the consumer stops.
//
// If either side reports an error, the context passed to the other is
// cancelled and Run returns the first error. Otherwise Run returns nil once
// every published value has been consumed.
func Run[T any](ctx context.Context, ch *slot.Channel[T], produce Producer[T], consume Consumer[T]) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer ch.Close()
		return produce(gctx, func(v T) error { return ch.Publish(gctx, v) })
	})
	g.Go(func() error {
		for {
			v, err := ch.Take(gctx)
			if errors.Is(err, slot.ErrEndOfStream) {
				return nil
			} else if err != nil {
				return err
			}
			if err := consume(gctx, v); err != nil {
				return err
			}
		}
	})
	return g.Wait()
}

// Slice returns a Producer that publishes the elements of vs in order.
// The slice is copied, so the caller may modify vs after Slice returns.
func Slice[T any](vs []T) Producer[T] {
	cp := slices.Clone(vs)
	return func(_ context.Context, publish func(T) error) error {
		for _, v := range cp {
			if err := publish(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// Collect runs produce against ch with a consumer that records each value,
// and returns the values in the order they were consumed. If Run fails,
// Collect returns the values consumed before the failure along with the
// error.
func Collect[T any](ctx context.Context, ch *slot.Channel[T], produce Producer[T]) ([]T, error) {
	var out []T
	err := Run(ctx, ch, produce, func(_ context.Context, v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}
