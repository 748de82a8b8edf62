package cache

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/urbaine/upwatch/config"
)

// Cache is a typed ristretto cache whose entries expire after the
// configured TTL.
type Cache[V any] struct {
	c   *ristretto.Cache[string, V]
	ttl time.Duration
}

// New builds a cache from config.C().Cache.
func New[V any]() (*Cache[V], error) {
	cfg := config.C().Cache
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
		OnReject: func(item *ristretto.Item[V]) {
			log.Warn("Cache item rejected", "key", item.Key, "value", item.Value)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &Cache[V]{c: c, ttl: time.Duration(cfg.TTL) * time.Second}, nil
}

func (c *Cache[V]) Set(key string, value V) error {
	if !c.c.SetWithTTL(key, value, 1, c.ttl) {
		return fmt.Errorf("failed to set value in cache")
	}
	c.c.Wait()
	return nil
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.c.Get(key)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.c.Clear()
}

func (c *Cache[V]) Close() {
	c.c.Close()
}
