// Package cache defines the key/value contract the read path depends on and its backends.
//
// A Get past an entry's TTL must report a Miss, the same as a key that was never written. Callers
// never inspect expiry themselves.
package cache

import (
	"context"
	"time"
)

// Lookup is the outcome of a Get: either Hit carrying the stored bytes, or Miss.
type Lookup struct {
	value []byte
	hit   bool
}

func Hit(value []byte) Lookup { return Lookup{value: value, hit: true} }

func Miss() Lookup { return Lookup{} }

// Value returns the cached bytes and whether the lookup was a hit.
func (l Lookup) Value() ([]byte, bool) { return l.value, l.hit }

func (l Lookup) IsHit() bool { return l.hit }

type Client interface {
	Get(ctx context.Context, key string) (Lookup, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Disabled is a Client that stores nothing. Every Get is a Miss.
type Disabled struct{}

var _ Client = Disabled{}

func (Disabled) Get(context.Context, string) (Lookup, error)              { return Miss(), nil }
func (Disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Disabled) Delete(context.Context, string) error                     { return nil }
func (Disabled) Ping(context.Context) error                               { return nil }
