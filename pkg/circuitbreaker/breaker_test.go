package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.Execute(context.Background(), func() error { return errBackend })
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})

	failN(b, 2)
	if b.State() != Closed {
		t.Fatal("breaker should stay closed under the threshold")
	}

	failN(b, 1)
	if b.State() != Open {
		t.Fatal("breaker should open at the threshold")
	}

	err := b.Execute(context.Background(), func() error {
		t.Fatal("open breaker must not call the backend")
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Cooldown: time.Hour})

	failN(b, 2)
	b.Execute(context.Background(), func() error { return nil })
	failN(b, 2)

	if b.State() != Closed {
		t.Fatal("success should reset the consecutive failure count")
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	failN(b, 1)
	if b.State() != Open {
		t.Fatal("breaker should be open")
	}

	time.Sleep(15 * time.Millisecond)
	if b.State() != HalfOpen {
		t.Fatal("breaker should be half-open after the cooldown")
	}

	for i := 0; i < 2; i++ {
		if err := b.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("probe %d rejected: %v", i, err)
		}
	}
	if b.State() != Closed {
		t.Fatal("breaker should close after enough probe successes")
	}
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	failN(b, 1)
	time.Sleep(15 * time.Millisecond)

	failN(b, 1)
	if b.State() != Open {
		t.Fatal("failed probe should reopen the breaker")
	}
}
