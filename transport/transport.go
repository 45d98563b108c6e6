package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common errors.
var (
	ErrClosed  = errors.New("transport closed")
	ErrNotOpen = errors.New("transport not open")

	// ErrBufferFull means the peer has stopped draining writes.
	ErrBufferFull = errors.New("transport send buffer full")
)

// Close codes understood by the channel.
const (
	CloseNormal       = 1000
	CloseGoingAway    = 1001
	CloseAbnormal     = 1006
	CloseTooBig       = 1009
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
)

// IsCleanClose reports whether code marks an orderly shutdown by the peer.
func IsCleanClose(code int) bool {
	return code == CloseNormal
}

// IsAuthClose reports whether code marks rejected credentials.
func IsAuthClose(code int) bool {
	return code == CloseUnauthorized || code == CloseForbidden
}

// Listener receives the events of one connection. Callbacks for a single
// connection are never invoked concurrently with each other.
type Listener interface {
	// OnOpen is called once the connection is ready for writes.
	OnOpen()

	// OnMessage is called for every inbound frame.
	OnMessage(data []byte)

	// OnClose is called when the peer closes the connection.
	OnClose(code int, reason string)

	// OnError is called when the connection fails to open or breaks.
	// No further callbacks follow.
	OnError(err error)
}

// Dialer opens connections.
type Dialer interface {
	// Dial starts connecting to url and returns a handle immediately. The
	// outcome is reported through l; no callback is made before Dial
	// returns. An error is returned only when the attempt cannot start.
	Dial(ctx context.Context, url string, header http.Header, l Listener) (Conn, error)
}

// Conn is an open or opening connection.
type Conn interface {
	// Write queues one frame for sending and does not wait on the peer. It
	// fails with ErrNotOpen before OnOpen, ErrClosed after Close and
	// ErrBufferFull when earlier frames are still unsent. A frame that
	// fails after it was accepted is reported through OnError.
	Write(data []byte) error

	// Close shuts the connection down with the given close code without
	// waiting on the peer. After Close returns, the listener receives no
	// further callbacks.
	Close(code int, reason string) error
}

// HandshakeError is reported when the server answers the upgrade request
// with a non-101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// IsAuthStatus reports whether the handshake was rejected for credentials.
func (e *HandshakeError) IsAuthStatus() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
