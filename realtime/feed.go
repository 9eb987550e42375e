package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Feed re-runs a query whenever one of its collections changes
type Feed[S any] struct {
	notifier    Notifier
	collections []string
}

// NewFeed watches the given collections through n
func NewFeed[S any](n Notifier, collections ...string) *Feed[S] {
	return &Feed[S]{notifier: n, collections: collections}
}

// Subscription delivers complete snapshots on C. Only the latest snapshot
// is kept, so a slow reader skips straight to the current state. C is
// closed once the subscription ends.
type Subscription[S any] struct {
	C <-chan S

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe pushes query's result immediately and again after every
// change. The subscription ends when ctx is done or Close is called.
func (f *Feed[S]) Subscribe(ctx context.Context, query func(context.Context) (S, error)) *Subscription[S] {
	ctx, cancel := context.WithCancel(ctx)
	changes, stop := f.notifier.Listen(f.collections...)
	out := make(chan S, 1)
	s := &Subscription[S]{C: out, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer close(out)
		defer stop()

		push := func() {
			v, err := query(ctx)
			if err != nil {
				if ctx.Err() == nil {
					zap.S().Warnw("snapshot query failed", "collections", f.collections, "error", err)
				}
				return
			}
			select {
			case <-out:
			default:
			}
			out <- v
		}

		push()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				push()
			}
		}
	}()
	return s
}

// Done is closed when the subscription has fully stopped
func (s *Subscription[S]) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription and waits for it to stop. Nothing is sent
// on C after Close returns.
func (s *Subscription[S]) Close() {
	s.once.Do(s.cancel)
	<-s.done
}
