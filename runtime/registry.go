// Package runtime wires change propagation between the stores and their observers.
// It holds no business logic or domain rules.
package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"sync"
)

var _ contract.IRegistry = (*Registry)(nil)

type Set map[string]struct{}

type Registry struct {
	mu        sync.RWMutex
	observers map[string]contract.EventSink // map observer -> Sink
	streams   map[event.Stream]Set          // map stream to observers
}

func NewRegistry() *Registry {
	return &Registry{
		observers: make(map[string]contract.EventSink),
		streams:   make(map[event.Stream]Set),
	}
}

// GetSinks resolves the observers subscribed to a stream into their sinks.
// An observer watching several streams owns a single sink.
// Returns nil if nobody watches the stream.
func (r *Registry) GetSinks(stream event.Stream) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.streams[stream]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for observerID := range members {
		if sink, exists := r.observers[observerID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// Subscribe registers an observer's sink and attaches it to a stream.
// Subscribing again replaces the sink of the observer for every stream it watches.
func (r *Registry) Subscribe(observerID string, stream event.Stream, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers[observerID] = sink

	if _, ok := r.streams[stream]; !ok {
		r.streams[stream] = make(Set)
	}
	r.streams[stream][observerID] = struct{}{}
}

// Unsubscribe detaches the observer from the stream. The sink is forgotten
// once the observer watches nothing.
func (r *Registry) Unsubscribe(observerID string, stream event.Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.streams[stream]; ok {
		delete(members, observerID)
		if len(members) == 0 {
			delete(r.streams, stream)
		}
	}
	for _, members := range r.streams {
		if _, ok := members[observerID]; ok {
			return
		}
	}
	delete(r.observers, observerID)
}
