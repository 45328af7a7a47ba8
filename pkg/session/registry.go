package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Registry tracks the live controllers of this process by session id. The
// server holds one and passes it to every connection handler.
type Registry struct {
	sessions sync.Map
	count    atomic.Int64
	draining atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers c. A controller already registered under the same id is shut
// down and returned.
func (r *Registry) Add(c *Controller) *Controller {
	prev, loaded := r.sessions.Swap(c.ID(), c)
	if !loaded {
		r.count.Add(1)
		return nil
	}
	old := prev.(*Controller)
	old.Shutdown()
	return old
}

func (r *Registry) Get(id string) (*Controller, bool) {
	if v, ok := r.sessions.Load(id); ok {
		return v.(*Controller), true
	}
	return nil, false
}

// Remove stops c and forgets it, unless a newer controller took over its id.
func (r *Registry) Remove(c *Controller) {
	if r.sessions.CompareAndDelete(c.ID(), c) {
		r.count.Add(-1)
	}
	c.Stop()
}

// CloseAll shuts down every registered controller and its connection.
func (r *Registry) CloseAll() {
	r.sessions.Range(func(key, value any) bool {
		c := value.(*Controller)
		if r.sessions.CompareAndDelete(key, c) {
			r.count.Add(-1)
		}
		c.Shutdown()
		return true
	})
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

// WaitForEmpty polls until no session is registered or ctx ends.
func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
