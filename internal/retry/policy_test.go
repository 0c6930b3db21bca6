package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/wasmrun/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffJitter {
		t.Fatalf("expected jitter default mode got %s", p.Mode)
	}
	if p.Initial != time.Second || p.Max != 5*time.Second {
		t.Fatalf("expected [1s,5s) got [%v,%v)", p.Initial, p.Max)
	}
	if p.MaxRetries != 3 {
		t.Fatalf("expected max retries 3 got %d", p.MaxRetries)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}
	if q := NewPolicy("bogus", 0, 0, -1); q.Mode != config.RetryBackoffJitter || q.MaxRetries != 3 {
		t.Fatalf("expected defaults for invalid input, got %+v", q)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	if d := fixed.Delay(3); d != 100*time.Millisecond {
		t.Fatalf("fixed delay = %v", d)
	}
	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 3)
	if d := linear.Delay(2); d != 200*time.Millisecond {
		t.Fatalf("linear delay = %v", d)
	}
	if d := linear.Delay(3); d != 250*time.Millisecond {
		t.Fatalf("linear cap = %v", d)
	}
	exp := NewPolicy(config.RetryBackoffExponential, 100*time.Millisecond, 300*time.Millisecond, 3)
	if d := exp.Delay(2); d != 200*time.Millisecond {
		t.Fatalf("exponential delay = %v", d)
	}
	if d := exp.Delay(3); d != 300*time.Millisecond {
		t.Fatalf("exponential cap = %v", d)
	}
	if d := exp.Delay(0); d != 0 {
		t.Fatalf("attempt 0 should not wait, got %v", d)
	}
}

// TestJitterBounds samples the jitter mode and checks [Initial, Max).
func TestJitterBounds(t *testing.T) {
	p := DefaultPolicy()
	for i := 1; i <= 500; i++ {
		d := p.Delay(i)
		if d < time.Second || d >= 5*time.Second {
			t.Fatalf("jitter delay %v outside [1s,5s)", d)
		}
	}

	p.Rand = func(n int64) int64 { return n - 1 }
	if d := p.Delay(1); d != 5*time.Second-1 {
		t.Fatalf("upper edge = %v", d)
	}
	p.Rand = func(int64) int64 { return 0 }
	if d := p.Delay(1); d != time.Second {
		t.Fatalf("lower edge = %v", d)
	}
}

func TestDoRetriesOnlyRetryable(t *testing.T) {
	transient := errors.New("transient")
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error { slept = append(slept, d); return nil }

	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := p.Do(context.Background(), sleep, func(err error) bool { return errors.Is(err, transient) }, func(int) error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) || calls != 4 || len(slept) != 3 {
		t.Fatalf("expected 4 calls / 3 sleeps, got calls=%d sleeps=%d err=%v", calls, len(slept), err)
	}

	permanent := errors.New("permanent")
	calls = 0
	err = p.Do(context.Background(), sleep, func(err error) bool { return errors.Is(err, transient) }, func(int) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("permanent error must not retry, calls=%d", calls)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if err := (Policy{Initial: 0, Max: time.Second}).Validate(); err == nil {
		t.Fatal("expected error for zero initial")
	}
	if err := (Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}).Validate(); err == nil {
		t.Fatal("expected error for negative retries")
	}
}
