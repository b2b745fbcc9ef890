package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process TTL cache. Expired entries are invisible to Get immediately and are
// swept by a janitor goroutine every cleanup interval.
type Memory struct {
	c *gocache.Cache
}

var _ Client = (*Memory)(nil)

func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(_ context.Context, key string) (Lookup, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return Miss(), nil
	}
	b, ok := v.([]byte)
	if !ok {
		return Miss(), nil
	}
	return Hit(b), nil
}

// Set stores a private copy of value so later mutation by the caller cannot leak into the cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.c.Set(key, cp, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Len() int { return m.c.ItemCount() }
