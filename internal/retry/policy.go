package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"git.home.luguber.info/inful/wasmrun/internal/config"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential|jitter
	Initial    time.Duration           // base delay (lower bound for jitter)
	Max        time.Duration           // cap for growth (exclusive upper bound for jitter)
	MaxRetries int                     // maximum retry attempts after the first failure

	// Rand returns a value in [0, n). Nil selects math/rand/v2.
	Rand func(n int64) int64
}

// DefaultPolicy returns the optimizer policy: 3 retries, each delay uniform in [1s, 5s).
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffJitter, Initial: time.Second, Max: 5 * time.Second, MaxRetries: 3}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds the optimizer retry policy from configuration.
func FromConfig(rc config.RetryConfig) Policy {
	initial, maxDelay := rc.Delays()
	return NewPolicy(rc.Backoff, initial, maxDelay, rc.Retries())
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffJitter:
		span := int64(p.Max - p.Initial)
		if span <= 0 {
			return p.Initial
		}
		return p.Initial + time.Duration(p.randN(span))
	case config.RetryBackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

func (p Policy) randN(n int64) int64 {
	if p.Rand != nil {
		return p.Rand(n)
	}
	return rand.Int64N(n)
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op, retrying while retryable(err) reports true and the budget allows.
// The delay before retry n is p.Delay(n). The last error is returned.
func (p Policy) Do(ctx context.Context, sleep Sleeper, retryable func(error) bool, op func(attempt int) error) error {
	if sleep == nil {
		sleep = Sleep
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(attempt); err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !retryable(err) {
			return err
		}
		if serr := sleep(ctx, p.Delay(attempt+1)); serr != nil {
			return err
		}
	}
}
