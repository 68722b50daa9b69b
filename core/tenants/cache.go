package tenants

import (
	"context"
	"sort"
	"sync"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/infra/metrics"
)

// Snapshot is the loaded configuration state. It is shared between readers
// and must be treated as read-only.
type Snapshot struct {
	Global  *extraction.GlobalConfig
	Clients map[string]*extraction.ClientRecord
	// Active is false when no client registry exists at all.
	Active bool
}

// IDs returns client ids in sorted order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Clients))
	for id := range s.Clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadFunc reads a fresh snapshot from storage.
type LoadFunc func(ctx context.Context) (*Snapshot, error)

// Cache holds one loaded snapshot until invalidated. The zero value is not
// usable; construct with NewCache.
type Cache struct {
	mu      sync.RWMutex
	snap    *Snapshot
	metrics metrics.ConfigMetrics
}

// NewCache returns an empty cache.
func NewCache(m metrics.ConfigMetrics) *Cache {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Cache{metrics: m}
}

// GetOrLoad returns the cached snapshot, calling load when there is none.
// Concurrent callers share a single load.
func (c *Cache) GetOrLoad(ctx context.Context, load LoadFunc) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil {
		return c.snap, nil
	}
	snap, err := load(ctx)
	c.metrics.IncCacheLoads(metrics.Outcome(err))
	if err != nil {
		return nil, err
	}
	c.snap = snap
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
	c.metrics.IncCacheInvalidations()
}

// Loaded reports whether a snapshot is cached.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap != nil
}
