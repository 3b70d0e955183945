package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Limiter is a per-client token bucket in front of the expensive
// endpoints (paper generation, ingestion). Keyed by client IP.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	logger     *zap.Logger
	stop       chan struct{}
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

type Config struct {
	RequestsPerMinute int
	Logger            *zap.Logger
}

func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	l := &Limiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  cfg.RequestsPerMinute,
		refillRate: time.Minute / time.Duration(cfg.RequestsPerMinute),
		logger:     cfg.Logger,
		stop:       make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if !l.allow(key, time.Now()) {
			l.logger.Warn("rate limit exceeded",
				zap.String("ip", key),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded, try again later",
			})
		}
		return c.Next()
	}
}

func (l *Limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.maxTokens, lastRefill: now}
		l.buckets[key] = b
	}

	refill := int(now.Sub(b.lastRefill) / l.refillRate)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.maxTokens {
			b.tokens = l.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.lastRefill) > 10*time.Minute {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	close(l.stop)
}
