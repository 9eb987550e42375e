// Package realtime pushes fresh query snapshots to long-lived views
// whenever a watched collection changes.
package realtime

import (
	"context"
	"sync"
)

// Notifier fans out "collection changed" signals
type Notifier interface {
	Publish(ctx context.Context, collection string) error
	// Listen returns a channel that receives at least one value after any
	// publish on the given collections. Signals that arrive while one is
	// pending are merged. The func stops the listener and closes the channel.
	Listen(collections ...string) (<-chan struct{}, func())
}

type listener struct {
	ch          chan struct{}
	collections map[string]struct{}
}

// LocalNotifier delivers signals inside this process
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[*listener]struct{}
}

// NewLocalNotifier returns a notifier with no listeners
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[*listener]struct{})}
}

// Publish never blocks on a slow listener
func (n *LocalNotifier) Publish(_ context.Context, collection string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for l := range n.listeners {
		if _, ok := l.collections[collection]; !ok {
			continue
		}
		select {
		case l.ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Listen implements Notifier
func (n *LocalNotifier) Listen(collections ...string) (<-chan struct{}, func()) {
	l := &listener{ch: make(chan struct{}, 1), collections: make(map[string]struct{}, len(collections))}
	for _, c := range collections {
		l.collections[c] = struct{}{}
	}
	n.mu.Lock()
	n.listeners[l] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, l)
			close(l.ch)
			n.mu.Unlock()
		})
	}
}

// Listeners is the number of open listeners
func (n *LocalNotifier) Listeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}
