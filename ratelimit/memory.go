package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/vinayprograms/synckit/clock"
)

// bucket implements a token bucket rate limiter.
type bucket struct {
	capacity    int           // maximum tokens
	available   int           // current tokens
	window      time.Duration // refill window
	lastRefill  time.Time     // time the last whole token was credited
	pausedUntil time.Time
}

// interval is the time it takes to refill one token.
func (b *bucket) interval() time.Duration {
	return b.window / time.Duration(b.capacity)
}

// refill credits tokens for the time elapsed since lastRefill. Partial
// progress toward the next token is kept.
func (b *bucket) refill(now time.Time) {
	if b.available >= b.capacity {
		b.lastRefill = now
		return
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	step := b.interval()
	if step <= 0 {
		b.available = b.capacity
		b.lastRefill = now
		return
	}
	tokens := int(elapsed / step)
	if tokens == 0 {
		return
	}
	b.available += tokens
	b.lastRefill = b.lastRefill.Add(time.Duration(tokens) * step)
	if b.available >= b.capacity {
		b.available = b.capacity
		b.lastRefill = now
	}
}

// delay returns the time until a token is available.
func (b *bucket) delay(now time.Time) time.Duration {
	if now.Before(b.pausedUntil) {
		return b.pausedUntil.Sub(now)
	}
	b.refill(now)
	if b.available > 0 {
		return 0
	}
	d := b.lastRefill.Add(b.interval()).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// MemoryLimiter provides local rate limiting using token buckets.
// It is safe for concurrent use.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
	clock   clock.Clock
}

// NewMemoryLimiter creates a new in-memory rate limiter. A nil clock uses
// the real clock.
func NewMemoryLimiter(clk clock.Clock) *MemoryLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		clock:   clk,
	}
}

// SetCapacity configures the rate limit for a resource.
func (m *MemoryLimiter) SetCapacity(resource string, capacity int, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if capacity <= 0 || window <= 0 {
		delete(m.buckets, resource)
		return
	}

	now := m.clock.Now()
	if b, exists := m.buckets[resource]; exists {
		b.refill(now)
		b.capacity = capacity
		b.window = window
		if b.available > capacity {
			b.available = capacity
		}
		return
	}
	m.buckets[resource] = &bucket{
		capacity:   capacity,
		available:  capacity, // start full
		window:     window,
		lastRefill: now,
	}
}

// Pause empties the bucket and holds it closed for d.
func (m *MemoryLimiter) Pause(resource string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[resource]
	if !exists || d <= 0 {
		return
	}
	now := m.clock.Now()
	b.available = 0
	b.pausedUntil = now.Add(d)
	b.lastRefill = b.pausedUntil.Add(-b.interval()) // first token at pausedUntil
}

// GetCapacity returns the current capacity info for a resource.
func (m *MemoryLimiter) GetCapacity(resource string) *Capacity {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[resource]
	if !exists {
		return nil
	}

	now := m.clock.Now()
	if !now.Before(b.pausedUntil) {
		b.refill(now)
	}

	return &Capacity{
		Resource:    resource,
		Available:   b.available,
		Total:       b.capacity,
		Window:      b.window,
		PausedUntil: b.pausedUntil,
	}
}

// Delay returns how long until the next token.
func (m *MemoryLimiter) Delay(resource string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[resource]
	if !exists {
		return 0
	}
	return b.delay(m.clock.Now())
}

// TryAcquire attempts to acquire a token without blocking.
func (m *MemoryLimiter) TryAcquire(resource string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, _, _ := m.tryLocked(resource)
	return ok
}

func (m *MemoryLimiter) tryLocked(resource string) (bool, time.Duration, error) {
	if m.closed {
		return false, 0, ErrClosed
	}
	b, exists := m.buckets[resource]
	if !exists {
		return false, 0, ErrResourceUnknown
	}
	if d := b.delay(m.clock.Now()); d > 0 {
		return false, d, nil
	}
	b.available--
	return true, 0, nil
}

// Acquire blocks until a token is available for the resource.
func (m *MemoryLimiter) Acquire(ctx context.Context, resource string) error {
	for {
		m.mu.Lock()
		ok, wait, err := m.tryLocked(resource)
		m.mu.Unlock()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		ready := make(chan struct{})
		t := m.clock.AfterFunc(wait, func() { close(ready) })
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-ready:
		}
	}
}

// Close shuts down the limiter.
func (m *MemoryLimiter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.buckets = make(map[string]*bucket)
	return nil
}

// Ensure MemoryLimiter implements RateLimiter.
var _ RateLimiter = (*MemoryLimiter)(nil)
