// Package stats counts request outcomes for reporting. Nothing in the
// request path reads these counters to make decisions.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/pario-ai/narrator/pkg/models"
)

// Collector accumulates outcome counts and latency. The zero value is ready
// to use and safe for concurrent use.
type Collector struct {
	requests     atomic.Int64
	cacheHits    atomic.Int64
	liveSuccess  atomic.Int64
	liveFailures atomic.Int64
	failFasts    atomic.Int64
	latencyTotal atomic.Int64
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{}
}

// Record adds one terminal outcome.
func (c *Collector) Record(outcome models.Outcome, latency time.Duration) {
	c.requests.Add(1)
	c.latencyTotal.Add(int64(latency))
	switch outcome {
	case models.OutcomeCacheHit:
		c.cacheHits.Add(1)
	case models.OutcomeLive:
		c.liveSuccess.Add(1)
	case models.OutcomeLiveFailure:
		c.liveFailures.Add(1)
	case models.OutcomeFailFast:
		c.failFasts.Add(1)
	}
}

// Snapshot returns the current counters and derived rates.
func (c *Collector) Snapshot() models.StatsSnapshot {
	s := models.StatsSnapshot{
		Requests:      c.requests.Load(),
		CacheHits:     c.cacheHits.Load(),
		LiveSuccesses: c.liveSuccess.Load(),
		LiveFailures:  c.liveFailures.Load(),
		FailFasts:     c.failFasts.Load(),
	}
	s.CacheMisses = s.LiveSuccesses + s.LiveFailures + s.FailFasts
	s.Fallbacks = s.LiveFailures + s.FailFasts
	if s.Requests > 0 {
		s.MeanLatency = time.Duration(c.latencyTotal.Load() / s.Requests)
		s.CacheHitRate = float64(s.CacheHits) / float64(s.Requests)
		s.ErrorRate = float64(s.Fallbacks) / float64(s.Requests)
	}
	return s
}
