// Package bus provides pub/sub message bus clients used to fan channel
// traffic out to other processes.
//
// # Overview
//
// The MessageBus interface covers publish and subscribe over NATS or an
// in-process implementation. Subscriptions deliver through channels.
//
// # Available Implementations
//
//   - NATSBus: Production-grade messaging using NATS
//   - MemoryBus: In-memory implementation for testing and single-process use
//
// # Subjects
//
// Subjects are dot-separated tokens. Subscriptions may use "*" to match a
// single token and a trailing ">" to match the rest:
//
//	sub, _ := bus.Subscribe("synckit.data_update.>")
//	for msg := range sub.Messages() {
//	    // Handle message
//	}
//
// SubjectToken makes arbitrary text (such as a topic name) safe to use as
// one token.
package bus
