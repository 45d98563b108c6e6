package dispatch

import (
	"fmt"
	"sync"

	"github.com/vinayprograms/synckit/errors"
	"github.com/vinayprograms/synckit/transport"
)

// Handler processes one inbound envelope.
type Handler func(env transport.Envelope)

// HandlerID identifies a registration so it can be removed.
type HandlerID uint64

type entry struct {
	id      HandlerID
	handler Handler
}

// Registry maps envelope types to ordered handler lists. Several handlers
// may listen to the same type; they run in registration order.
type Registry struct {
	mu     sync.RWMutex
	nextID HandlerID
	byType map[string][]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string][]entry)}
}

// On registers h for msgType and returns its ID.
func (r *Registry) On(msgType string, h Handler) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.byType[msgType] = append(r.byType[msgType], entry{id: r.nextID, handler: h})
	return r.nextID
}

// Off removes the handler with the given ID and reports whether it existed.
// The order of the remaining handlers is unchanged.
func (r *Registry) Off(id HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for msgType, entries := range r.byType {
		for i, e := range entries {
			if e.id != id {
				continue
			}
			rest := make([]entry, 0, len(entries)-1)
			rest = append(rest, entries[:i]...)
			rest = append(rest, entries[i+1:]...)
			if len(rest) == 0 {
				delete(r.byType, msgType)
			} else {
				r.byType[msgType] = rest
			}
			return true
		}
	}
	return false
}

// Handlers returns a snapshot of the handlers for msgType in registration order.
func (r *Registry) Handlers(msgType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.byType[msgType]
	out := make([]Handler, len(entries))
	for i, e := range entries {
		out[i] = e.handler
	}
	return out
}

// Len returns the number of handlers registered for msgType.
func (r *Registry) Len(msgType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[msgType])
}

// Dispatcher delivers envelopes to the handlers in a Registry.
type Dispatcher struct {
	registry *Registry
}

// New creates a dispatcher over registry.
func New(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs every handler registered for env.Type and returns how many
// ran. A panicking handler does not stop the others; each panic is reported
// in the returned error.
func (d *Dispatcher) Dispatch(env transport.Envelope) (int, error) {
	handlers := d.registry.Handlers(env.Type)
	var errs []error
	for _, h := range handlers {
		if err := invoke(h, env); err != nil {
			errs = append(errs, err)
		}
	}
	return len(handlers), joinErrors(errs)
}

// DispatchFrame decodes data and dispatches it. Frames that fail to decode
// yield a MALFORMED_FRAME error and run no handlers.
func (d *Dispatcher) DispatchFrame(data []byte) (transport.Envelope, int, error) {
	env, err := transport.Decode(data)
	if err != nil {
		return transport.Envelope{}, 0, errors.WrapWithCode(err, errors.ErrCodeMalformedFrame, "decode frame")
	}
	n, err := d.Dispatch(env)
	return env, n, err
}

// Invoke runs fn and converts a panic into a PANIC error tagged with msgType.
func Invoke(msgType string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errors.RecoverPanic(r), fmt.Sprintf("handler for %q panicked", msgType))
		}
	}()
	fn()
	return nil
}

func invoke(h Handler, env transport.Envelope) error {
	return Invoke(env.Type, func() { h(env) })
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}
