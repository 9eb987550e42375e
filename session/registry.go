package session

import (
	"context"
	"sync"
	"time"
)

// Registry is the process-wide view of who is signed in. It only changes
// through Run, which follows a provider's change stream.
type Registry struct {
	mu       sync.RWMutex
	active   map[string]time.Time
	revoked  map[string]time.Time
	watchers map[string][]chan struct{}
	closed   bool
	now      func() time.Time
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		active:   make(map[string]time.Time),
		revoked:  make(map[string]time.Time),
		watchers: make(map[string][]chan struct{}),
		now:      time.Now,
	}
}

// Run applies changes until ctx is done, then closes every outstanding watch
func (r *Registry) Run(ctx context.Context, changes <-chan Change) {
	defer r.teardown()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-changes:
			r.apply(c)
		}
	}
}

func (r *Registry) apply(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.User != nil {
		r.active[c.Token] = c.ExpiresAt
	} else {
		delete(r.active, c.Token)
		r.revoked[c.Token] = c.ExpiresAt
		for _, w := range r.watchers[c.Token] {
			close(w)
		}
		delete(r.watchers, c.Token)
	}
	r.prune(r.now())
}

// prune drops entries whose token has expired, it fails verification anyway
func (r *Registry) prune(now time.Time) {
	for t, exp := range r.active {
		if !exp.IsZero() && exp.Before(now) {
			delete(r.active, t)
		}
	}
	for t, exp := range r.revoked {
		if !exp.IsZero() && exp.Before(now) {
			delete(r.revoked, t)
		}
	}
}

func (r *Registry) teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, ws := range r.watchers {
		for _, w := range ws {
			close(w)
		}
		delete(r.watchers, t)
	}
	r.active = make(map[string]time.Time)
	r.closed = true
}

// Revoked reports whether token was signed out
func (r *Registry) Revoked(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[token]
	return ok
}

// Active is the number of unexpired sessions signed in on this instance
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	n := 0
	for _, exp := range r.active {
		if exp.IsZero() || !exp.Before(now) {
			n++
		}
	}
	return n
}

// Watch returns a channel closed when token is signed out or the registry
// shuts down
func (r *Registry) Watch(token string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := make(chan struct{})
	if _, gone := r.revoked[token]; gone || r.closed {
		close(w)
		return w
	}
	r.watchers[token] = append(r.watchers[token], w)
	return w
}

// Unwatch drops a channel returned by Watch once its caller is done with it
func (r *Registry) Unwatch(token string, w <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws := r.watchers[token]
	for i, c := range ws {
		if c == w {
			ws = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(ws) == 0 {
		delete(r.watchers, token)
		return
	}
	r.watchers[token] = ws
}
