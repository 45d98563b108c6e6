// Package queue holds outbound messages while the channel is not connected.
//
// The queue is a fixed-size ring. Overflow evicts the oldest entry, which
// Push hands back so the caller can report it. Messages leave the queue only
// by eviction or by the caller popping them after a successful write.
package queue
