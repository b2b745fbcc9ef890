// Package admission bounds the number of lookups that may be in flight at once.
//
// A Controller hands out at most Max permits. TryEnter never blocks and never queues: when the
// ceiling is reached it fails fast with ErrBusy and the caller sheds the request. Every permit must
// be released exactly once; Do wraps a unit of work so release happens on every exit path.
package admission

import (
	"context"
	"errors"
	"sync/atomic"

	"tatkal-search/metrics"

	"github.com/rs/zerolog/log"
)

const DefaultMaxInflight = 500

// ErrBusy is returned when the controller is at capacity.
var ErrBusy = errors.New("admission: system busy")

type Controller struct {
	max      int64
	inflight atomic.Int64
}

// Permit is one unit of granted capacity.
type Permit struct {
	c        *Controller
	released atomic.Bool
}

func NewController(max int64) *Controller {
	if max <= 0 {
		max = DefaultMaxInflight
	}
	return &Controller{max: max}
}

// TryEnter grants a permit if fewer than Max are outstanding. The compare and the increment are a
// single CAS, so concurrent callers cannot push the counter past Max.
func (c *Controller) TryEnter() (*Permit, error) {
	for {
		cur := c.inflight.Load()
		if cur >= c.max {
			metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
			log.Debug().Int64("inflight", cur).Int64("max", c.max).Msg("admission: rejected")
			return nil, ErrBusy
		}
		if c.inflight.CompareAndSwap(cur, cur+1) {
			metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()
			metrics.Inflight.Inc()
			return &Permit{c: c}, nil
		}
	}
}

// Leave returns the permit. Calls after the first are no-ops.
func (p *Permit) Leave() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	p.c.inflight.Add(-1)
	metrics.Inflight.Dec()
}

// Do runs fn while holding a permit. It returns ErrBusy without calling fn when no permit is
// available. The permit is released when fn returns or panics.
func (c *Controller) Do(ctx context.Context, fn func(context.Context) error) error {
	permit, err := c.TryEnter()
	if err != nil {
		return err
	}
	defer permit.Leave()
	return fn(ctx)
}

func (c *Controller) Inflight() int64 {
	return c.inflight.Load()
}

func (c *Controller) Max() int64 {
	return c.max
}
