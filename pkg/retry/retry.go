package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy is a bounded backoff schedule shared by the embedding client,
// the vector index adapter and the question generator. When Retryable is
// non-empty, only errors matching one of its entries (via errors.Is) are
// replayed; everything else returns immediately.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
	Retryable   []error
	Logger      *zap.Logger
}

// Default returns the policy used when a component does not configure
// its own: three attempts, 200ms base delay doubling up to 5s.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
		Logger:      zap.NewNop(),
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// Do runs operation until it succeeds, exhausts the attempt budget, hits
// a non-retryable error, or ctx is done.
func Do(ctx context.Context, p Policy, operation func() error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				p.Logger.Info("operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !p.shouldRetry(lastErr) {
			p.Logger.Debug("error not retryable", zap.Error(lastErr), zap.Int("attempt", attempt))
			return lastErr
		}
		if attempt >= p.MaxAttempts {
			return lastErr
		}

		delay := p.delayFor(attempt)
		p.Logger.Warn("operation failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](ctx context.Context, p Policy, operation func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}

func (p Policy) shouldRetry(err error) bool {
	if len(p.Retryable) == 0 {
		return true
	}
	for _, class := range p.Retryable {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}

// delayFor doubles the base delay per attempt, caps it at MaxDelay, and
// spreads it by +-Jitter to avoid synchronized retries.
func (p Policy) delayFor(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt-1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := (rand.Float64()*2 - 1) * p.Jitter * float64(delay)
		delay += time.Duration(spread)
	}
	if delay < 0 {
		delay = p.BaseDelay
	}
	return delay
}
