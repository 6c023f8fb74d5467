package slot

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Default settings used when the corresponding Config field is zero.
const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultTimeout      = 30 * time.Millisecond
)

// Config carries settings for a [Channel]. A nil *Config is valid and
// provides default values as described on the fields.
type Config struct {
	// Strategy selects how blocked callers wait for the channel state to
	// change. The default is CondVar.
	Strategy Strategy

	// PollInterval is the time a Polling caller sleeps between checks.
	// If PollInterval ≤ 0, DefaultPollInterval is used.
	PollInterval time.Duration

	// Timeout bounds each wait under CondVarTimeout. If Timeout ≤ 0,
	// DefaultTimeout is used.
	Timeout time.Duration

	// If not nil, OnTimeout is called each time a CondVarTimeout wait expires
	// before the channel state changed. It is called by the waiting goroutine,
	// without any locks held, and is not used by other strategies. If it
	// panics, the panic propagates to the caller of Take or Publish and the
	// channel is left unchanged.
	OnTimeout func()

	// Logger receives debug logs of channel state transitions.
	// If nil, logs are discarded.
	Logger *zap.Logger
}

func (c *Config) pollInterval() time.Duration {
	if c == nil || c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

func (c *Config) timeout() time.Duration {
	if c == nil || c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

var nopLogger = zap.NewNop()

func (c *Config) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return nopLogger
	}
	return c.Logger
}

// Strategy identifies how goroutines blocked on a [Channel] wait for it to
// become actionable. All strategies provide the same ordering and delivery
// guarantees; they differ only in CPU use and wakeup latency.
type Strategy int

const (
	// CondVar waits on a condition variable and is woken by the goroutine
	// that changes the channel state. It does not busy-wait.
	CondVar Strategy = iota

	// Polling checks the channel state under its lock, and if it is not
	// actionable releases the lock and sleeps for the poll interval before
	// checking again. Wakeup latency is bounded by the poll interval, at the
	// cost of repeated checks while idle.
	Polling

	// CondVarTimeout behaves like CondVar, but bounds each wait by a timeout.
	// When a wait expires the OnTimeout hook is called and the wait is
	// reissued, so the caller can do periodic work while blocked.
	CondVarTimeout
)

var strategyNames = [...]string{
	CondVar:        "condvar",
	Polling:        "polling",
	CondVarTimeout: "condvar-timeout",
}

func (s Strategy) valid() bool { return s >= 0 && int(s) < len(strategyNames) }

// String returns the name of s as accepted by [ParseStrategy].
func (s Strategy) String() string {
	if s.valid() {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy returns the Strategy with the given name.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
