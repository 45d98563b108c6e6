package transport

import (
	"context"
	"net/http"
	"sync"
)

// MemoryDialer is an in-process Dialer for tests. Every Dial produces a
// MemoryConn that stays pending until the test drives it with Open, Fail,
// CloseRemote or Deliver.
type MemoryDialer struct {
	mu      sync.Mutex
	conns   []*MemoryConn
	dialErr error
}

// NewMemoryDialer creates a dialer with no connections.
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{}
}

// FailDials makes subsequent Dial calls return err synchronously. Pass nil
// to restore normal behaviour.
func (d *MemoryDialer) FailDials(err error) {
	d.mu.Lock()
	d.dialErr = err
	d.mu.Unlock()
}

// Dial records a new pending connection.
func (d *MemoryDialer) Dial(ctx context.Context, url string, header http.Header, l Listener) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := &MemoryConn{URL: url, Header: header.Clone(), listener: l}
	d.conns = append(d.conns, c)
	return c, nil
}

// Conns returns every connection dialed so far.
func (d *MemoryDialer) Conns() []*MemoryConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MemoryConn, len(d.conns))
	copy(out, d.conns)
	return out
}

// Count returns the number of Dial calls that produced a connection.
func (d *MemoryDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Last returns the most recent connection, or nil.
func (d *MemoryDialer) Last() *MemoryConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// MemoryConn is the connection produced by MemoryDialer.
type MemoryConn struct {
	URL    string
	Header http.Header

	listener Listener

	mu          sync.Mutex
	open        bool
	closed      bool
	closeCode   int
	closeReason string
	writeErr    error
	written     [][]byte
}

// Open simulates a completed handshake.
func (c *MemoryConn) Open() {
	c.mu.Lock()
	if c.closed || c.open {
		c.mu.Unlock()
		return
	}
	c.open = true
	c.mu.Unlock()
	c.listener.OnOpen()
}

// Deliver simulates an inbound frame.
func (c *MemoryConn) Deliver(data []byte) {
	if c.IsClosed() {
		return
	}
	c.listener.OnMessage(data)
}

// DeliverEnvelope encodes env and delivers it.
func (c *MemoryConn) DeliverEnvelope(env Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	c.Deliver(data)
	return nil
}

// CloseRemote simulates the server closing the connection.
func (c *MemoryConn) CloseRemote(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.listener.OnClose(code, reason)
}

// Fail simulates a dial failure or broken connection.
func (c *MemoryConn) Fail(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.listener.OnError(err)
}

// FailWrites makes every subsequent Write return err. Pass nil to restore.
func (c *MemoryConn) FailWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

// Write records data.
func (c *MemoryConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.open {
		return ErrNotOpen
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.written = append(c.written, buf)
	return nil
}

// Close marks the connection closed by the local side.
func (c *MemoryConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	return nil
}

// IsClosed reports whether either side closed the connection.
func (c *MemoryConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCode returns the code passed to a local Close, or 0.
func (c *MemoryConn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Written returns every frame written so far.
func (c *MemoryConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// Envelopes decodes every written frame. Frames that fail to decode are
// skipped.
func (c *MemoryConn) Envelopes() []Envelope {
	var out []Envelope
	for _, data := range c.Written() {
		env, err := Decode(data)
		if err != nil {
			continue
		}
		out = append(out, env)
	}
	return out
}

// Types returns the type of every written frame in write order.
func (c *MemoryConn) Types() []string {
	envs := c.Envelopes()
	out := make([]string, len(envs))
	for i, env := range envs {
		out[i] = env.Type
	}
	return out
}
