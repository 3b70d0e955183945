package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func fastPolicy(maxAttempts int, retryable ...error) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   retryable,
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("schema conflict")
	calls := 0
	err := Do(context.Background(), fastPolicy(5, errFlaky), func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error should not be replayed, got %d calls", calls)
	}
}

func TestDoMatchesWrappedRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3, errFlaky), func() error {
		calls++
		return fmt.Errorf("batch 2: %w", errFlaky)
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("wrapped retryable error should be replayed, got %d calls", calls)
	}
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(3), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("cancelled context should prevent the first attempt, got %d calls", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastPolicy(3), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errFlaky
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestDelayForIsBounded(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.5}.normalized()
	for attempt := 1; attempt <= 20; attempt++ {
		d := p.delayFor(attempt)
		if d <= 0 || d > time.Second+time.Second/2 {
			t.Errorf("attempt %d: delay %v outside expected bounds", attempt, d)
		}
	}
}
