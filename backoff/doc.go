// Package backoff computes reconnect delays.
//
// The delay for zero-based attempt n is min(Base * Decay^n, Max). With the
// default policy the sequence is 1s, 1.5s, 2.25s, 3.375s ... capped at 30s.
// The policy is pure: it never sleeps and never counts attempts, so the
// caller decides when to stop retrying.
package backoff
