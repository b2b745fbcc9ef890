// Package cacheaside serves availability reads from the cache when it can and from the store when
// it must, writing store results back so later reads for the same key skip the store.
//
// Each Read walks one of three paths and keeps no state between calls:
//
//	Lookup -> Hit -> Done
//	Lookup -> Miss -> Fetch -> ok -> Populate -> Done
//	Lookup -> Miss -> Fetch -> fail -> StoreError
//
// Cache faults never reach the caller. A failed Get is a miss and a failed Set is logged and
// dropped. Population happens before Read returns, bounded by Options.CacheWriteTimeout, so a
// repeat of the same search is served from the cache.
//
// Concurrent misses on one key each go to the store unless Options.CoalesceMisses is set, in which
// case they share a single fetch that outlives any one caller's context.
//
// A fetch that overlaps any Invalidate skips its cache write, since it may have read the store
// before the change. A write already past that check can still land after the eviction; such an
// entry lives at most one TTL.
package cacheaside

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"tatkal-search/cache"
	"tatkal-search/metrics"
	"tatkal-search/store"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type Source string

const (
	SourceCache Source = "cache"
	SourceStore Source = "store"
)

// FetchFunc loads rows from the source of truth for one key.
type FetchFunc func(ctx context.Context) ([]store.Row, error)

type Result struct {
	Data    []store.Row
	Source  Source
	Latency time.Duration
}

// StoreError is returned when the fetch behind a miss fails.
type StoreError struct {
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store fetch for %s: %v", e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

type Options struct {
	TTL time.Duration
	// StoreTimeout bounds each fetch. Zero means no bound beyond the caller's context, and no
	// bound at all for a coalesced fetch.
	StoreTimeout time.Duration
	// CacheWriteTimeout bounds each Set made after a miss.
	CacheWriteTimeout time.Duration
	CoalesceMisses    bool
}

type Reader struct {
	cache cache.Client
	opts  Options
	group singleflight.Group
	// evictions counts Invalidate calls.
	evictions atomic.Uint64
}

func NewReader(c cache.Client, opts Options) *Reader {
	if c == nil {
		c = cache.Disabled{}
	}
	if opts.CacheWriteTimeout <= 0 {
		opts.CacheWriteTimeout = 500 * time.Millisecond
	}
	return &Reader{cache: c, opts: opts}
}

// Read returns the rows for key, from the cache if present, otherwise from fetch.
func (r *Reader) Read(ctx context.Context, key string, fetch FetchFunc) (*Result, error) {
	start := time.Now()

	if rows, ok := r.lookup(ctx, key); ok {
		metrics.LookupsTotal.WithLabelValues(string(SourceCache)).Inc()
		return &Result{Data: rows, Source: SourceCache, Latency: time.Since(start)}, nil
	}

	rows, err := r.fetch(ctx, key, fetch)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("error").Inc()
		return nil, &StoreError{Key: key, Err: err}
	}

	metrics.LookupsTotal.WithLabelValues(string(SourceStore)).Inc()
	return &Result{Data: rows, Source: SourceStore, Latency: time.Since(start)}, nil
}

func (r *Reader) lookup(ctx context.Context, key string) ([]store.Row, bool) {
	l, err := r.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		log.Warn().Err(err).Str("key", key).Msg("cacheaside: cache get failed; falling back to store")
		return nil, false
	}
	b, ok := l.Value()
	if !ok {
		return nil, false
	}
	var rows []store.Row
	if err := json.Unmarshal(b, &rows); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("decode").Inc()
		log.Warn().Err(err).Str("key", key).Msg("cacheaside: undecodable cache entry; treating as miss")
		return nil, false
	}
	return rows, true
}

func (r *Reader) fetch(ctx context.Context, key string, fetch FetchFunc) ([]store.Row, error) {
	if !r.opts.CoalesceMisses {
		return r.fetchAndPopulate(ctx, key, fetch)
	}
	// The shared fetch is detached from whichever caller started it. Each caller still stops
	// waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.fetchAndPopulate(shared, key, fetch)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]store.Row), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Reader) fetchAndPopulate(ctx context.Context, key string, fetch FetchFunc) ([]store.Row, error) {
	fctx := ctx
	if r.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, r.opts.StoreTimeout)
		defer cancel()
	}

	epoch := r.evictions.Load()
	begin := time.Now()
	rows, err := fetch(fctx)
	metrics.StoreDuration.Observe(time.Since(begin).Seconds())
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []store.Row{}
	}
	if r.evictions.Load() != epoch {
		log.Debug().Str("key", key).Msg("cacheaside: invalidated during fetch; not caching")
		return rows, nil
	}
	r.populate(ctx, key, rows)
	return rows, nil
}

// populate writes rows to the cache. Errors are logged and counted only.
func (r *Reader) populate(ctx context.Context, key string, rows []store.Row) {
	b, err := json.Marshal(rows)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("encode").Inc()
		log.Warn().Err(err).Str("key", key).Msg("cacheaside: could not encode rows for cache")
		return
	}

	// A client that hung up after the fetch still leaves the rows behind for the next caller.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.CacheWriteTimeout)
	defer cancel()
	if err := r.cache.Set(sctx, key, b, r.opts.TTL); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		log.Warn().Err(err).Str("key", key).Msg("cacheaside: cache populate failed")
		return
	}
	log.Debug().Str("key", key).Int("rows", len(rows)).Dur("ttl", r.opts.TTL).Msg("cacheaside: cache populated")
}

// Invalidate drops key from the cache so the next Read goes to the store.
func (r *Reader) Invalidate(ctx context.Context, key string) error {
	r.evictions.Add(1)
	if err := r.cache.Delete(ctx, key); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}
