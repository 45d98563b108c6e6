// Package errors provides the structured error taxonomy for the synckit
// channel. Every failure the connection manager reports carries a code, a
// category that drives retry decisions and a fault class that maps it onto the
// connection state machine.
//
// # Error Categories
//
//   - Transient: the channel may recover by reconnecting (dial failure, timeouts)
//   - Permanent: reconnecting will not help (bad credentials, malformed frames)
//   - Resource: capacity limits (queue overflow, oversized messages, rate limits)
//   - Internal: bugs or recovered handler panics
//
// # Faults
//
// Fault classes group codes by what happened on the wire: network, liveness,
// authentication, protocol, capacity and exhaustion.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeQueueOverflow, "evicted oldest message",
//	    errors.WithMessageID(id))
//
//	if errors.FaultOf(err) == errors.FaultAuthentication {
//	    // prompt for new credentials
//	}
//
// # JSON Serialization
//
// Errors round-trip through JSON so they can be published on a message bus:
//
//	data, err := json.Marshal(syncErr)
package errors
