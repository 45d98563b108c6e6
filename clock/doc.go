// Package clock abstracts the timers used by the sync channel.
//
// Production code uses Real. Tests use Manual, which fires callbacks
// synchronously from Advance so that reconnect delays, connect timeouts and
// heartbeat deadlines can be stepped through without sleeping:
//
//	clk := clock.NewManual(time.Unix(0, 0))
//	clk.AfterFunc(time.Second, func() { fired = true })
//	clk.Advance(time.Second) // fired == true
package clock
