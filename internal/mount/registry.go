// Package mount tracks live component instances (lesson tree views and
// exercise sessions) between requests. Unmounting tears an instance down.
package mount

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// DefaultTTL is how long an untouched instance stays mounted
const DefaultTTL = 30 * time.Minute

type entry[T io.Closer] struct {
	value    T
	owner    string
	lastSeen time.Time
}

// Registry holds mounted instances keyed by a random id. Each instance
// belongs to the owner that mounted it; other owners see it as not mounted.
type Registry[T io.Closer] struct {
	name  string
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[uuid.UUID]*entry[T]
}

// NewRegistry creates a registry. A zero ttl uses DefaultTTL.
func NewRegistry[T io.Closer](name string, ttl time.Duration) *Registry[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry[T]{
		name:  name,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[uuid.UUID]*entry[T]),
	}
}

// Mount registers v for owner and returns its id
func (r *Registry[T]) Mount(owner string, v T) string {
	id := uuid.New()

	r.mu.Lock()
	r.items[id] = &entry[T]{value: v, owner: owner, lastSeen: r.now()}
	n := len(r.items)
	r.mu.Unlock()

	slog.Debug("mounted", "registry", r.name, "id", id, "live", n)
	return id.String()
}

// Get returns owner's instance for id and refreshes its TTL
func (r *Registry[T]) Get(owner, id string) (T, error) {
	var zero T

	key, err := uuid.Parse(id)
	if err != nil {
		return zero, fmt.Errorf("%w: %s %q", domain.ErrNotMounted, r.name, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[key]
	if !ok || e.owner != owner {
		if ok {
			slog.Warn("instance requested by another owner", "registry", r.name, "id", id)
		}
		return zero, fmt.Errorf("%w: %s %q", domain.ErrNotMounted, r.name, id)
	}
	e.lastSeen = r.now()
	return e.value, nil
}

// Unmount removes owner's instance for id and closes it
func (r *Registry[T]) Unmount(owner, id string) error {
	key, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s %q", domain.ErrNotMounted, r.name, id)
	}

	r.mu.Lock()
	e, ok := r.items[key]
	ok = ok && e.owner == owner
	if ok {
		delete(r.items, key)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s %q", domain.ErrNotMounted, r.name, id)
	}
	return e.value.Close()
}

// Len returns the number of live instances
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep unmounts every instance idle for longer than the TTL
func (r *Registry[T]) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []T
	for id, e := range r.items {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.value)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, v := range expired {
		if err := v.Close(); err != nil {
			slog.Warn("close expired instance", "registry", r.name, "error", err)
		}
	}
	if len(expired) > 0 {
		slog.Info("swept idle instances", "registry", r.name, "count", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes everything
func (r *Registry[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll unmounts every instance
func (r *Registry[T]) CloseAll() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[uuid.UUID]*entry[T])
	r.mu.Unlock()

	for _, e := range items {
		if err := e.value.Close(); err != nil {
			slog.Warn("close instance", "registry", r.name, "error", err)
		}
	}
}
