package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrClosed          = errors.New("limiter closed")
	ErrResourceUnknown = errors.New("unknown resource")
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrInvalidWindow   = errors.New("invalid window")
)

// RateLimiter throttles named resources with token buckets.
type RateLimiter interface {
	// Acquire blocks until a token is available for the resource.
	// Returns context.Canceled or context.DeadlineExceeded if context ends.
	// Returns ErrResourceUnknown if the resource has no configured capacity.
	Acquire(ctx context.Context, resource string) error

	// TryAcquire takes a token without blocking. It reports false when the
	// bucket is empty, paused, or the resource is unknown.
	TryAcquire(resource string) bool

	// Delay returns how long until TryAcquire can next succeed. Zero means
	// a token is available now or the resource is unknown.
	Delay(resource string) time.Duration

	// SetCapacity configures capacity tokens per window for the resource.
	// A non-positive capacity or window removes the limit.
	SetCapacity(resource string, capacity int, window time.Duration)

	// Pause empties the bucket and refuses tokens until d has elapsed.
	Pause(resource string, d time.Duration)

	// GetCapacity returns the current capacity info for a resource.
	// Returns nil if the resource is unknown.
	GetCapacity(resource string) *Capacity

	// Close shuts down the limiter and releases resources.
	Close() error
}

// Capacity describes the rate limit configuration for a resource.
type Capacity struct {
	// Resource is the unique identifier for the rate-limited resource.
	Resource string

	// Available is the current number of available tokens.
	Available int

	// Total is the maximum capacity (tokens per window).
	Total int

	// Window is the refill period.
	Window time.Duration

	// PausedUntil is set while the resource is paused.
	PausedUntil time.Time
}

// Validate checks a capacity setting.
func Validate(capacity int, window time.Duration) error {
	if capacity < 0 {
		return ErrInvalidCapacity
	}
	if capacity > 0 && window <= 0 {
		return ErrInvalidWindow
	}
	return nil
}
