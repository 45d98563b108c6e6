package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig holds WebSocket dialer configuration.
type WebSocketConfig struct {
	// HandshakeTimeout bounds the HTTP upgrade (0 = rely on ctx only).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each frame write on the writer goroutine.
	WriteTimeout time.Duration

	// SendBufferSize is how many frames Write accepts before the writer
	// goroutine has flushed them.
	SendBufferSize int

	// MaxMessageSize limits incoming message size (0 = unlimited).
	MaxMessageSize int64

	// ReadBufferSize and WriteBufferSize size the I/O buffers.
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		SendBufferSize:   100,
		MaxMessageSize:   1024 * 1024, // 1MB
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// WebSocketDialer implements Dialer with gorilla/websocket.
type WebSocketDialer struct {
	config WebSocketConfig
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer.
func NewWebSocketDialer(cfg WebSocketConfig) *WebSocketDialer {
	return &WebSocketDialer{
		config: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
		},
	}
}

// NewWebSocketUpgrader creates an upgrader for accepting WebSocket connections.
func NewWebSocketUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // Override in production
	}
}

// Dial starts the handshake on a background goroutine.
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string, header http.Header, l Listener) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	sendSize := d.config.SendBufferSize
	if sendSize <= 0 {
		sendSize = DefaultWebSocketConfig().SendBufferSize
	}

	dialCtx, cancel := context.WithCancel(ctx)
	c := &wsConn{
		config:   d.config,
		listener: l,
		cancel:   cancel,
		send:     make(chan []byte, sendSize),
		closing:  make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go c.run(dialCtx, d.dialer, rawURL, header)
	return c, nil
}

// wsConn is one client connection. Frames accepted by Write are flushed by
// a writer goroutine so a stalled peer never blocks the caller.
type wsConn struct {
	config   WebSocketConfig
	listener Listener
	cancel   context.CancelFunc

	send     chan []byte
	closing  chan struct{}
	readDone chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool
	closeCode int
	closeText string
	writeErr  error
}

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer, rawURL string, header http.Header) {
	defer close(c.readDone)

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if c.isClosed() {
			return
		}
		if resp != nil {
			err = &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		c.listener.OnError(err)
		return
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	c.listener.OnOpen()
	c.readLoop(conn)
}

// readLoop delivers frames until the connection ends. A failed write closes
// the socket, so its error surfaces here and the listener stays serial.
func (c *wsConn) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if writeErr := c.markClosed(); writeErr != nil {
				c.listener.OnError(writeErr)
				return
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.listener.OnClose(closeErr.Code, closeErr.Text)
				return
			}
			c.listener.OnError(err)
			return
		}
		if c.isClosed() {
			return
		}
		c.listener.OnMessage(data)
	}
}

// writeLoop flushes accepted frames. After Close it drains what is left
// and then sends the close frame.
func (c *wsConn) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case data := <-c.send:
			if err := c.writeFrame(conn, data); err != nil {
				c.failWrite(conn, err)
				return
			}
		case <-c.closing:
			c.drain(conn)
			return
		case <-c.readDone:
			return
		}
	}
}

func (c *wsConn) writeFrame(conn *websocket.Conn, data []byte) error {
	if c.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) drain(conn *websocket.Conn) {
	for {
		select {
		case data := <-c.send:
			if err := c.writeFrame(conn, data); err != nil {
				conn.Close()
				return
			}
		default:
			c.mu.Lock()
			code, text := c.closeCode, c.closeText
			c.mu.Unlock()
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(code, text),
				time.Now().Add(time.Second),
			)
			conn.Close()
			return
		}
	}
}

// failWrite records err and closes the socket to stop the read loop.
func (c *wsConn) failWrite(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.writeErr == nil {
		c.writeErr = err
	}
	c.mu.Unlock()
	conn.Close()
}

// Write hands a text frame to the writer goroutine. It never blocks: a
// full send buffer means the peer has stopped reading and fails with
// ErrBufferFull.
func (c *wsConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.conn == nil {
		return ErrNotOpen
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops the connection with a close frame. Frames already accepted
// by Write are flushed first on the writer goroutine, so Close returns
// without waiting on the peer. A pending handshake is abandoned.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeCode, c.closeText = code, reason
	c.mu.Unlock()

	close(c.closing)
	c.cancel()
	return nil
}

func (c *wsConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// markClosed flags a peer-side end and returns the write failure that
// caused it, if any.
func (c *wsConn) markClosed() error {
	c.mu.Lock()
	c.closed = true
	err := c.writeErr
	c.mu.Unlock()
	c.cancel()
	return err
}
