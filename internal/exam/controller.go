package exam

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/examgen/backend/internal/examerr"
	"github.com/examgen/backend/pkg/logger"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Prober is a liveness check on one external collaborator.
type Prober interface {
	Ping(ctx context.Context) error
}

// Controller is the service lifecycle state machine. Generation is
// gated on ready; initialization probes the embedding backend and the
// vector index. Transitions are serialized; re-initialization from
// failed is allowed.
type Controller struct {
	embeddingProbe Prober
	indexProbe     Prober

	mu      sync.Mutex
	state   State
	reason  string
	initing bool
}

func NewController(embeddingProbe, indexProbe Prober) *Controller {
	return &Controller{
		embeddingProbe: embeddingProbe,
		indexProbe:     indexProbe,
		state:          StateUninitialized,
	}
}

// Initialize moves the controller to initializing, probes both
// collaborators, and lands on ready or failed. Concurrent calls beyond
// the first report an in-progress error instead of racing the probes.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initing {
		c.mu.Unlock()
		return fmt.Errorf("initialization already in progress")
	}
	c.initing = true
	c.state = StateInitializing
	c.reason = ""
	c.mu.Unlock()

	logger.Info("initializing exam service")
	err := c.probe(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.initing = false

	if err != nil {
		c.state = StateFailed
		c.reason = err.Error()
		logger.Error("exam service initialization failed", zap.Error(err))
		return err
	}

	c.state = StateReady
	logger.Info("exam service ready")
	return nil
}

func (c *Controller) probe(ctx context.Context) error {
	if err := c.embeddingProbe.Ping(ctx); err != nil {
		return fmt.Errorf("embedding backend unreachable: %w", err)
	}
	if err := c.indexProbe.Ping(ctx); err != nil {
		return fmt.Errorf("vector index unreachable: %w", err)
	}
	return nil
}

// RequireReady gates generation requests. Anything but ready fails
// immediately with examerr.ErrServiceNotReady; there is no waiting.
func (c *Controller) RequireReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return fmt.Errorf("%w: state is %s", examerr.ErrServiceNotReady, c.state)
	}
	return nil
}

// Status returns the current state and, for failed, the retained reason.
func (c *Controller) Status() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.reason
}
