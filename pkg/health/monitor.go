// Package health tracks whether an inference endpoint is reachable. A
// Monitor probes on its own schedule; the request path only reads it.
package health

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/executor"
	"github.com/pario-ai/narrator/pkg/models"
)

// Prober performs one liveness check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor owns the health state of one endpoint. It is the only writer of
// that state; readers get copies.
type Monitor struct {
	name       string
	prober     Prober
	classifier *executor.Classifier
	interval   time.Duration
	timeout    time.Duration
	threshold  int
	probeFirst bool
	now        func() time.Time

	mu    sync.RWMutex
	state models.HealthState
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a Monitor that starts out healthy.
func New(name string, p Prober, cfg config.HealthConfig, classifier *executor.Classifier, opts ...Option) *Monitor {
	m := &Monitor{
		name:       name,
		prober:     p,
		classifier: classifier,
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
		threshold:  max(cfg.UnhealthyThreshold, 1),
		probeFirst: cfg.ProbeOnStart,
		now:        time.Now,
		state:      models.HealthState{Status: models.Healthy},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Healthy reports the last known status without probing.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Status == models.Healthy
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() models.HealthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run probes on the configured interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.probeFirst {
		m.CheckNow(ctx)
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs one probe and records its result.
func (m *Monitor) CheckNow(ctx context.Context) models.HealthState {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Probe(pctx)
	cancel()

	if err != nil && ctx.Err() != nil {
		// Shutting down; a cancelled probe says nothing about the endpoint.
		return m.Snapshot()
	}
	if err != nil {
		r := m.classifier.Classify("", err)
		return m.record(r.Error(), true)
	}
	return m.record("", true)
}

// Observe feeds the outcome of a real request into the state machine.
// A nil error counts as a success.
func (m *Monitor) Observe(err error) {
	if err == nil {
		m.record("", false)
		return
	}
	m.record(err.Error(), false)
}

// record applies one outcome. Only probes move LastCheckAt.
func (m *Monitor) record(failure string, probe bool) models.HealthState {
	m.mu.Lock()
	prev := m.state.Status
	if probe {
		m.state.LastCheckAt = m.now()
	}
	if failure == "" {
		m.state.Status = models.Healthy
		m.state.ConsecutiveFailures = 0
		m.state.LastError = ""
	} else {
		m.state.ConsecutiveFailures++
		m.state.LastError = failure
		if m.state.ConsecutiveFailures >= m.threshold {
			m.state.Status = models.Unhealthy
		}
	}
	st := m.state
	m.mu.Unlock()

	if st.Status != prev {
		if st.Status == models.Unhealthy {
			log.Printf("health: %s unhealthy after %d failures: %s", m.name, st.ConsecutiveFailures, st.LastError)
		} else {
			log.Printf("health: %s recovered", m.name)
		}
	}
	return st
}
