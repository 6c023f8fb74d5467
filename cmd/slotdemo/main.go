// Program slotdemo runs a producer and a consumer that exchange a sequence
// of integers through a single-slot channel, and prints what the consumer
// receives.
//
// Usage:
//
//	slotdemo [flags]
//
// Interrupting the program (SIGINT or SIGTERM) stops both sides cleanly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creachadair/slot"
	"github.com/creachadair/slot/internal/logging"
	"github.com/creachadair/slot/lazy"
	"github.com/creachadair/slot/pair"
	"go.uber.org/zap"
)

var (
	strategy  = slot.CondVar
	count     = flag.Int("n", 10, "Number of values to produce")
	delay     = flag.Duration("delay", 100*time.Millisecond, "Producer delay between values")
	poll      = flag.Duration("poll", slot.DefaultPollInterval, "Poll interval (polling strategy)")
	timeout   = flag.Duration("timeout", slot.DefaultTimeout, "Wait timeout (condvar-timeout strategy)")
	heartbeat = flag.Bool("heartbeat", false, "Log each expired wait (condvar-timeout strategy)")
	logLevel  = flag.String("log-level", "info", "Log level")
	logFile   = flag.String("log-file", "", "Also write logs to this file, rotated")
)

func init() {
	flag.TextVar(&strategy, "strategy", slot.CondVar, "Wait strategy (polling, condvar, condvar-timeout)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if *count < 0 {
		fmt.Fprintln(os.Stderr, "slotdemo: -n must not be negative")
		os.Exit(2)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "slotdemo: %v\n", err)
		os.Exit(1)
	}
}

// run executes the demo, and reports an error if it could not start or if
// either side failed. An interrupt is not an error.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Both executors and run share one logger, built by whichever reaches
	// for it first.
	logger := lazy.New(func(context.Context) (*zap.Logger, error) {
		return logging.New(logging.Config{
			Level:   *logLevel,
			Console: true,
			File:    logging.FileConfig{Path: *logFile, MaxSize: 10, MaxBackups: 3},
		})
	})
	log, err := logger.Get(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := &slot.Config{
		Strategy:     strategy,
		PollInterval: *poll,
		Timeout:      *timeout,
		Logger:       log.Named("slot"),
	}
	if *heartbeat {
		cfg.OnTimeout = func() { log.Debug("wait expired; still waiting") }
	}
	ch := slot.New[int](cfg)

	log.Info("starting", zap.Stringer("strategy", strategy), zap.Int("n", *count))
	start := time.Now()
	err = pair.Run(ctx, ch, produce(logger, *count, *delay), consume(logger))

	st := ch.Stat()
	log.Info("finished",
		zap.Uint64("published", st.Published),
		zap.Uint64("taken", st.Taken),
		zap.Duration("elapsed", time.Since(start)),
	)
	if errors.Is(err, context.Canceled) {
		log.Info("interrupted")
		return nil
	} else if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}
	return nil
}

func produce(logger *lazy.Value[*zap.Logger], n int, delay time.Duration) pair.Producer[int] {
	return func(ctx context.Context, publish func(int) error) error {
		log, err := logger.Get(ctx)
		if err != nil {
			return err
		}
		for i := 1; i <= n; i++ {
			if delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if err := publish(i); err != nil {
				return err
			}
			log.Debug("produced", zap.Int("value", i))
		}
		return nil
	}
}

func consume(logger *lazy.Value[*zap.Logger]) pair.Consumer[int] {
	return func(ctx context.Context, v int) error {
		log, err := logger.Get(ctx)
		if err != nil {
			return err
		}
		log.Debug("consumed", zap.Int("value", v))
		fmt.Println(v)
		return nil
	}
}
