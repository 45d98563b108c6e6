package backoff

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidPolicy is returned by Validate for unusable settings.
var ErrInvalidPolicy = errors.New("invalid backoff policy")

// Policy computes reconnect delays that grow geometrically up to a cap.
type Policy struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Max caps every delay.
	Max time.Duration

	// Decay is the growth factor applied per attempt. Values below 1 are
	// treated as 1.
	Decay float64
}

// DefaultPolicy returns the standard reconnect policy: 1s growing by 1.5x up to 30s.
func DefaultPolicy() Policy {
	return Policy{
		Base:  time.Second,
		Max:   30 * time.Second,
		Decay: 1.5,
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.Base <= 0 {
		return errors.Join(ErrInvalidPolicy, errors.New("base must be positive"))
	}
	if p.Max < p.Base {
		return errors.Join(ErrInvalidPolicy, errors.New("max must be at least base"))
	}
	if math.IsNaN(p.Decay) || math.IsInf(p.Decay, 0) || p.Decay < 1 {
		return errors.Join(ErrInvalidPolicy, errors.New("decay must be a finite number >= 1"))
	}
	return nil
}

// NextDelay returns min(Base * Decay^attempt, Max) for a zero-based attempt.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.Base <= 0 {
		return 0
	}
	limit := p.Max
	if limit < p.Base {
		limit = p.Base
	}
	decay := p.Decay
	if math.IsNaN(decay) || decay < 1 {
		decay = 1
	}

	d := float64(p.Base) * math.Pow(decay, float64(attempt))
	if math.IsNaN(d) || math.IsInf(d, 0) || d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}

// Schedule returns the delays for the first n attempts.
func (p Policy) Schedule(n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = p.NextDelay(i)
	}
	return out
}
