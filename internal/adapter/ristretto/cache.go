// Package ristretto provides the in-process L1 read cache for conversation
// records, built on dgraph-io/ristretto.
package ristretto

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// A single record may use at most 1/maxItemShare of the cache. Long
// transcripts above that are served from the store instead of evicting
// many short ones.
const maxItemShare = 16

// Cache holds recently read conversation records. It may evict at any time
// and is only used in front of an authoritative store.
type Cache struct {
	c       *ristretto.Cache[string, []byte]
	maxItem int64
}

// New creates a cache bounded to maxCostBytes of keys plus values.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// Sized for records averaging 1KiB; ristretto wants ~10 counters per item.
		NumCounters: max(maxCostBytes/1024*10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, maxItem: maxCostBytes / maxItemShare}, nil
}

// Get returns a copy of the cached record so callers may decode in place.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return slices.Clone(val), true, nil
}

// Set caches value until ttl elapses. Oversized values evict any older copy
// of the key and are not cached. The write is visible to the next Get.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(key) + len(value))
	if cost > c.maxItem {
		c.c.Del(key)
		return nil
	}
	c.c.SetWithTTL(key, slices.Clone(value), cost, ttl)
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

func (c *Cache) Close() {
	c.c.Close()
}
