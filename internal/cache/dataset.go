package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"retaildash/internal/core"
	"retaildash/internal/metrics"
	"retaildash/internal/source"
)

// DatasetCache memoizes datasets per source key. Concurrent misses for the
// same key share a single load. Cached datasets are shared between callers
// and must be treated as read only.
type DatasetCache struct {
	logger  *slog.Logger
	entries *LRUCache[core.Dataset]
	group   singleflight.Group

	// bumped on every invalidation so loads started earlier are not cached
	generation atomic.Uint64

	mu      sync.RWMutex
	readers map[string]source.TransactionReader
	hooks   []func(key string)
}

func NewDatasetCache(logger *slog.Logger, size int, ttl time.Duration) *DatasetCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetCache{
		logger:  logger,
		entries: NewLRUCache[core.Dataset](size, ttl),
		readers: make(map[string]source.TransactionReader),
	}
}

// Add registers a reader under its Source key and returns the key.
func (c *DatasetCache) Add(r source.TransactionReader) string {
	key := r.Source()
	c.mu.Lock()
	c.readers[key] = r
	c.mu.Unlock()
	return key
}

// OnInvalidate registers fn to run after a key is invalidated. InvalidateAll
// calls it once with an empty key.
func (c *DatasetCache) OnInvalidate(fn func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Get returns the dataset for key, loading it on a miss.
func (c *DatasetCache) Get(ctx context.Context, key string) (core.Dataset, error) {
	if ds, ok := c.entries.Get(key); ok {
		return ds, nil
	}

	c.mu.RLock()
	r, ok := c.readers[key]
	c.mu.RUnlock()
	if !ok {
		return core.Dataset{}, fmt.Errorf("unknown dataset %q", key)
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// the load outlives any single waiting request
		loadCtx := context.WithoutCancel(ctx)
		gen := c.generation.Load()
		start := time.Now()
		ds, err := r.ReadTransactions(loadCtx)
		if err != nil {
			metrics.ObserveDatasetLoad(0, metrics.OutcomeError)
			return core.Dataset{}, fmt.Errorf("load %s: %w", key, err)
		}
		metrics.ObserveDatasetLoad(ds.Len(), metrics.OutcomeSuccess)
		if c.generation.Load() == gen {
			c.entries.Set(key, ds)
		}
		c.logger.Info("Dataset loaded",
			"source", key,
			"rows", ds.Len(),
			"skipped", ds.Skipped,
			"duration", time.Since(start))
		return ds, nil
	})
	if err != nil {
		return core.Dataset{}, err
	}
	if shared {
		c.logger.Debug("Dataset load shared", "source", key)
	}
	return v.(core.Dataset), nil
}

// Invalidate drops the cached dataset for key so the next Get reloads it.
func (c *DatasetCache) Invalidate(key string) {
	c.generation.Add(1)
	c.entries.Delete(key)
	c.group.Forget(key)
	c.notify(key)
}

// InvalidateAll drops every cached dataset.
func (c *DatasetCache) InvalidateAll() {
	c.generation.Add(1)
	c.entries.Clear()
	c.mu.RLock()
	for key := range c.readers {
		c.group.Forget(key)
	}
	c.mu.RUnlock()
	c.notify("")
}

// Keys returns the registered source keys.
func (c *DatasetCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.readers))
	for k := range c.readers {
		keys = append(keys, k)
	}
	return keys
}

// CleanExpired implements Cleaner.
func (c *DatasetCache) CleanExpired() int {
	return c.entries.CleanExpired()
}

func (c *DatasetCache) notify(key string) {
	c.mu.RLock()
	hooks := append([]func(string){}, c.hooks...)
	c.mu.RUnlock()

	c.logger.Info("Dataset cache invalidated", "source", key)
	for _, fn := range hooks {
		fn(key)
	}
}
