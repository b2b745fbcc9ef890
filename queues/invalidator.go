package queues

import (
	"context"

	"tatkal-search/cacheaside"
	"tatkal-search/metrics"

	"github.com/rs/zerolog/log"
)

// Evicter removes a cache key.
type Evicter interface {
	Invalidate(ctx context.Context, key string) error
}

// Invalidator applies availability-changed events to the cache.
type Invalidator struct {
	evicter Evicter
}

func NewInvalidator(e Evicter) *Invalidator {
	return &Invalidator{evicter: e}
}

// Handle evicts the key named by ev. It returns ErrInvalidEvent for events that can never apply.
func (i *Invalidator) Handle(ctx context.Context, ev *InvalidationEvent) error {
	if err := ev.Validate(); err != nil {
		metrics.InvalidationsTotal.WithLabelValues("invalid").Inc()
		return err
	}
	key := cacheaside.Key(ev.Query())
	if err := i.evicter.Invalidate(ctx, key); err != nil {
		metrics.InvalidationsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("key", key).Msg("invalidator: eviction failed")
		return err
	}
	metrics.InvalidationsTotal.WithLabelValues("applied").Inc()
	log.Info().Str("key", key).Msg("invalidator: cache key evicted")
	return nil
}
