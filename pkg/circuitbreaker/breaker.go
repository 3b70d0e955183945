package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes one breaker. FailureThreshold consecutive failures trip
// the breaker; after Cooldown one probe request is let through, and
// SuccessThreshold consecutive probe successes close it again.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
	Logger           *zap.Logger
}

// Breaker guards a single backend (the generation/embedding API). While
// open it fails fast with ErrOpen instead of issuing calls.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	logger           *zap.Logger

	mu            sync.Mutex
	state         State
	failures      int
	probeSuccess  int
	openedAt      time.Time
	probeInFlight bool
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Breaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		cooldown:         cfg.Cooldown,
		logger:           cfg.Logger,
	}
}

// Execute runs fn unless the breaker is open. Context errors count as
// failures: a backend that keeps timing out should trip the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpen()

	switch b.state {
	case Open:
		return ErrOpen
	case HalfOpen:
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
	}
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false

	if success {
		b.failures = 0
		if b.state == HalfOpen {
			b.probeSuccess++
			if b.probeSuccess >= b.successThreshold {
				b.transition(Closed)
			}
		}
		return
	}

	b.probeSuccess = 0
	switch b.state {
	case HalfOpen:
		b.transition(Open)
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.transition(Open)
		}
	}
}

// maybeHalfOpen moves an open breaker to half-open once the cooldown has
// elapsed. Caller must hold b.mu.
func (b *Breaker) maybeHalfOpen() {
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		b.transition(HalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.probeSuccess = 0
	if to == Open {
		b.openedAt = time.Now()
	}
	b.logger.Info("circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
