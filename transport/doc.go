// Package transport carries sync frames between client and server.
//
// # Overview
//
// Every frame is a JSON Envelope with a type, an optional payload, an
// optional id and an optional millisecond timestamp. The package defines the
// reserved types, the codec, and the Dialer/Conn/Listener contracts the
// connection manager is written against.
//
// # Available Dialers
//
//   - WebSocketDialer: gorilla/websocket client with handshake and write
//     timeouts, a read limit and typed handshake failures
//   - MemoryDialer: in-process connections driven by tests
//
// # Usage
//
//	d := transport.NewWebSocketDialer(transport.DefaultWebSocketConfig())
//	conn, err := d.Dial(ctx, "wss://example.com/ws", nil, listener)
//	// listener.OnOpen fires once the handshake completes
//	conn.Write(frame)
//
// # Design Decisions
//
//   - Callback-based API: the dialer reports open, message, close and error
//     events to a Listener so the caller can tag them with its own epoch
//   - Dial never blocks: the handshake runs on a background goroutine
//   - Reconnection: handled by the realtime package, not the transport
//
// # Thread Safety
//
// Write and Close are safe for concurrent use. Listener callbacks for one
// connection arrive from a single goroutine.
package transport
