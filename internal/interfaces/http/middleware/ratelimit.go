package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64
	// BurstSize is the bucket depth per client.
	BurstSize int
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(c *gin.Context) string
	// SkipPaths bypass limiting.
	SkipPaths []string
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns a sensible default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		IdleTTL:           5 * time.Minute,
	}
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewClientLimiter builds a limiter. When idleTTL is positive a background
// loop evicts idle buckets until Stop is called.
func NewClientLimiter(rps float64, burst int, idleTTL time.Duration) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &ClientLimiter{
		clients: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if idleTTL > 0 {
		go l.cleanupLoop()
	}
	return l
}

// Allow takes one token from key's bucket. The second return is the wait
// until the next token when the request is refused.
func (l *ClientLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the cleanup loop.
func (l *ClientLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *ClientLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *ClientLimiter) evictIdle() {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.clients {
		if b.lastSeen.Before(cutoff) {
			delete(l.clients, k)
		}
	}
}

// RateLimit rejects requests over the per-client rate with 429 and a
// Retry-After header.
func RateLimit(l *ClientLimiter, cfg RateLimitConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		ok, wait := l.Allow(keyFn(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			abortWithCode(c, errors.ErrCodeTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

//Personal.AI order the ending
