package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Linear(3, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhausted(t *testing.T) {
	p := Linear(2, time.Millisecond)
	err := p.Do(context.Background(), func(context.Context, int) error { return errFlaky })

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("Do() error = %v, want ExhaustedError", err)
	}
	if ex.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", ex.Attempts)
	}
	if !errors.Is(err, errFlaky) {
		t.Error("exhausted error does not wrap the last failure")
	}
}

func TestDoRetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	p := Linear(5, time.Millisecond)
	p.RetryIf = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Do() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Linear(3, time.Hour)

	err := p.Do(ctx, func(context.Context, int) error {
		cancel()
		return errFlaky
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, Multiplier: 2}
	d := p.InitialDelay
	d = p.next(d)
	if d != 20*time.Millisecond {
		t.Errorf("next() = %v, want 20ms", d)
	}
	d = p.next(d)
	if d != 25*time.Millisecond {
		t.Errorf("next() = %v, want capped 25ms", d)
	}

	p.Jitter = true
	for range 20 {
		j := p.jittered(20 * time.Millisecond)
		if j < 10*time.Millisecond || j > 20*time.Millisecond {
			t.Fatalf("jittered() = %v, want within [10ms, 20ms]", j)
		}
	}
}
