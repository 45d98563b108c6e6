package subscription

import (
	"encoding/json"
	"sync"
	"time"
)

// Handler receives the payload of every inbound frame addressed to a topic.
type Handler func(topic string, payload json.RawMessage)

// Subscription is one topic registration.
type Subscription struct {
	Topic     string
	Handler   Handler
	CreatedAt time.Time
}

// Registry maps topics to handlers, one handler per topic. The registry is
// the source of truth for what to replay after a reconnect and survives
// disconnects.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Subscription
	order  []string
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Subscription),
		now:    time.Now,
	}
}

// Set registers handler for topic, replacing any previous handler. It
// reports whether the topic is new; only new topics need a subscribe frame.
func (r *Registry) Set(topic string, handler Handler) (created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.byName[topic]; ok {
		sub.Handler = handler
		return false
	}
	r.byName[topic] = &Subscription{Topic: topic, Handler: handler, CreatedAt: r.now()}
	r.order = append(r.order, topic)
	return true
}

// Remove drops topic and reports whether it was registered.
func (r *Registry) Remove(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[topic]; !ok {
		return false
	}
	delete(r.byName, topic)
	for i, name := range r.order {
		if name == topic {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Handler returns the handler registered for topic.
func (r *Registry) Handler(topic string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byName[topic]
	if !ok {
		return nil, false
	}
	return sub.Handler, true
}

// Get returns a copy of the subscription for topic.
func (r *Registry) Get(topic string) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byName[topic]
	if !ok {
		return Subscription{}, false
	}
	return *sub, true
}

// Topics returns registered topics in the order they were first subscribed.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear removes every subscription and returns the dropped topics.
func (r *Registry) Clear() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := r.order
	r.byName = make(map[string]*Subscription)
	r.order = nil
	return dropped
}
