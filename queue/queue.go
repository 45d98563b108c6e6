package queue

import (
	"encoding/json"
	"time"
)

// Message is an outbound frame waiting for an open channel.
type Message struct {
	// ID identifies the message on the wire.
	ID string

	// Type is the envelope type.
	Type string

	// Payload is the application payload as given to Send.
	Payload json.RawMessage

	// Data is the fully encoded frame written to the transport.
	Data []byte

	// EnqueuedAt is when the message entered the queue.
	EnqueuedAt time.Time

	// Attempts counts failed writes of this message.
	Attempts int
}

// Queue is a bounded FIFO of outbound messages. When full, Push evicts the
// oldest message to make room, so it never blocks and never rejects.
//
// Queue is not safe for concurrent use; the owner serialises access.
type Queue struct {
	buf   []*Message
	head  int
	count int
}

// New creates a queue holding at most capacity messages. A capacity below
// one is raised to one.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{buf: make([]*Message, capacity)}
}

// Push appends msg. If the queue was full, the oldest message is removed
// and returned.
func (q *Queue) Push(msg *Message) (evicted *Message) {
	if q.count == len(q.buf) {
		evicted = q.buf[q.head]
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = msg
	q.count++
	return evicted
}

// Peek returns the oldest message without removing it.
func (q *Queue) Peek() (*Message, bool) {
	if q.count == 0 {
		return nil, false
	}
	return q.buf[q.head], true
}

// Pop removes and returns the oldest message.
func (q *Queue) Pop() (*Message, bool) {
	if q.count == 0 {
		return nil, false
	}
	msg := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return msg, true
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return q.count
}

// Cap returns the queue's capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Snapshot returns the queued messages, oldest first.
func (q *Queue) Snapshot() []*Message {
	out := make([]*Message, 0, q.count)
	for i := 0; i < q.count; i++ {
		out = append(out, q.buf[(q.head+i)%len(q.buf)])
	}
	return out
}

// Clear discards every queued message and returns how many were dropped.
func (q *Queue) Clear() int {
	n := q.count
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.head = 0
	q.count = 0
	return n
}
