// Package notifier provides a simple broadcast mechanism for SSE updates.
package notifier

import "sync"

// Notifier broadcasts render signals to all subscribed listeners.
// It uses a simple ping mechanism - listeners receive an empty struct
// when a new render is available and should re-read the workspace.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
	closed    bool
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan struct{}]struct{}),
	}
}

// Subscribe returns a channel that receives pings when renders are available.
// The channel is closed by Unsubscribe or Close. Subscribing to a closed
// notifier returns an already closed channel.
func (n *Notifier) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch
	}
	n.listeners[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Broadcast sends a ping to all listeners and returns how many there were.
// Non-blocking: if a listener's channel is full, the ping is skipped.
func (n *Notifier) Broadcast() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
			// Channel full, skip (listener will catch up on next broadcast)
		}
	}
	return len(n.listeners)
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Close closes every listener channel. Later subscriptions are closed
// immediately.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners {
		close(ch)
	}
	clear(n.listeners)
	n.closed = true
}
