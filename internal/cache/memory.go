package cache

import (
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

// MemoryCache is a bounded in-process cache using otter's S3-FIFO policy.
// Entries expire after a fixed TTL.
type MemoryCache[V any] struct {
	store otter.Cache[string, V]
}

// NewMemoryCache builds a cache holding at most capacity items.
func NewMemoryCache[V any](capacity int, ttl time.Duration) (*MemoryCache[V], error) {
	builder, err := otter.NewBuilder[string, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("invalid cache capacity: %w", err)
	}

	store, err := builder.WithTTL(ttl).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build memory cache: %w", err)
	}
	return &MemoryCache[V]{store: store}, nil
}

func (c *MemoryCache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Set reports false when the write was rejected by the admission policy.
func (c *MemoryCache[V]) Set(key string, v V) bool {
	return c.store.Set(key, v)
}

func (c *MemoryCache[V]) Delete(key string) {
	c.store.Delete(key)
}

func (c *MemoryCache[V]) Len() int {
	return c.store.Size()
}

// Close stops otter's background goroutines.
func (c *MemoryCache[V]) Close() {
	c.store.Close()
}
