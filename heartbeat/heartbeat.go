package heartbeat

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("heartbeat already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Config configures a heartbeat monitor.
type Config struct {
	// Interval between pings. Zero disables the monitor.
	// Default: 30 seconds
	Interval time.Duration

	// PongTimeout is how long to wait for a pong before declaring the peer
	// unresponsive.
	// Default: 10 seconds
	PongTimeout time.Duration
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval < 0 {
		return ErrInvalidConfig
	}
	if c.Interval > 0 && c.PongTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Enabled reports whether pings will be sent.
func (c *Config) Enabled() bool {
	return c.Interval > 0
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		PongTimeout: 10 * time.Second,
	}
}

// Record is the liveness state of the current connection.
type Record struct {
	// LastPingSentAt is when the most recent ping went out.
	LastPingSentAt time.Time

	// LastPongReceivedAt is when the most recent matching pong arrived.
	LastPongReceivedAt time.Time

	// OutstandingPing is true between a ping and its pong.
	OutstandingPing bool

	// PingID is the id of the outstanding or most recent ping.
	PingID string

	// Latency is the round trip of the most recent ping.
	Latency time.Duration
}

// PingFunc sends a ping frame carrying id.
type PingFunc func(id string) error
