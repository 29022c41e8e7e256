// Package notifier broadcasts state updates to any number of listeners.
package notifier

import "sync"

// Notifier publishes values of type T to all subscribed listeners.
// Each listener holds at most one pending value: a newer publish replaces an
// unread one, so slow listeners always see the latest state and never block
// the publisher.
type Notifier[T any] struct {
	mu        sync.RWMutex
	listeners map[chan T]struct{}
	closed    bool
}

// New creates a new Notifier instance.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{
		listeners: make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel receiving published values and a function
// that unsubscribes and closes it. Subscribing to a closed notifier returns
// an already closed channel.
func (n *Notifier[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	n.listeners[ch] = struct{}{}

	var once sync.Once
	return ch, func() { once.Do(func() { n.unsubscribe(ch) }) }
}

func (n *Notifier[T]) unsubscribe(ch chan T) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Publish sends v to every listener, replacing a value the listener has not
// read yet.
func (n *Notifier[T]) Publish(v T) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		// Drop the stale value, then deliver. Only Publish sends, under the
		// read lock, so a concurrent Publish can refill the slot; the second
		// select then skips and that listener keeps the concurrent value.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Len returns the number of listeners.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Close closes every listener channel. Later publishes are no-ops.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for ch := range n.listeners {
		close(ch)
	}
	n.listeners = make(map[chan T]struct{})
}
