// Package pubsub provides a minimal synchronous observer registry, shared by
// the cart, checkout, and geolocation stores.
//
// Notifications are delivered synchronously on the caller's goroutine, after
// the triggering mutation has fully completed. Subscribers must not trigger
// further mutations from inside a notification callback.
package pubsub

import "sync"

// Hub fans a value of type T out to registered subscribers.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

// New returns an empty Hub.
func New[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns a function that removes it again.
// It does not replay any value; stores replay their current snapshot
// themselves so that replay and notification carry the same type.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Notify delivers v to every registered subscriber, synchronously.
func (h *Hub[T]) Notify(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
