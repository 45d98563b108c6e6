// Package ratelimit throttles outbound traffic with token buckets.
//
// The connection manager uses a MemoryLimiter to pace application sends.
// The limit comes from configuration and can be changed at runtime by the
// server through rate_limit frames.
//
//	limiter := ratelimit.NewMemoryLimiter(clock.Real())
//	limiter.SetCapacity("send", 20, time.Second) // 20 frames per second
//
//	if limiter.TryAcquire("send") {
//	    // write now
//	} else {
//	    retryIn := limiter.Delay("send")
//	    // queue and retry after retryIn
//	}
//
//	// Server asked for a pause
//	limiter.Pause("send", 5*time.Second)
//
// # Algorithm
//
// Each resource has a bucket of Total tokens refilled evenly over Window:
//   - Tokens are added at a fixed rate of capacity/window
//   - Each TryAcquire or Acquire consumes one token
//   - With no token available, TryAcquire returns false and Acquire waits
//   - Pause empties the bucket and withholds refill until it expires
package ratelimit
