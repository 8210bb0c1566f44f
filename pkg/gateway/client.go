// Package gateway is the caller-facing entry point. A Client turns a raw
// game context and a player input into an Envelope, drawing on the cache,
// the live service or the fallback table in that order.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/narrator/pkg/cache"
	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/executor"
	"github.com/pario-ai/narrator/pkg/fallback"
	"github.com/pario-ai/narrator/pkg/health"
	"github.com/pario-ai/narrator/pkg/models"
	"github.com/pario-ai/narrator/pkg/optimizer"
	"github.com/pario-ai/narrator/pkg/provider"
	"github.com/pario-ai/narrator/pkg/stats"
)

// Auditor records envelopes after they have been returned.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// BackendFactory builds the backend for an endpoint.
type BackendFactory func(ctx context.Context, e config.EndpointConfig) (provider.Backend, error)

type options struct {
	backends BackendFactory
	store    cache.Store
	auditor  Auditor
	sleep    executor.SleepFunc
	now      func() time.Time
}

// Option configures a Client or Pool.
type Option func(*options)

// WithBackend makes every client use b instead of dialing its endpoint.
func WithBackend(b provider.Backend) Option {
	return func(o *options) {
		o.backends = func(context.Context, config.EndpointConfig) (provider.Backend, error) { return b, nil }
	}
}

// WithBackendFactory replaces provider.New.
func WithBackendFactory(f BackendFactory) Option {
	return func(o *options) { o.backends = f }
}

// WithStore adds a second cache tier. The caller keeps ownership and
// closes it.
func WithStore(s cache.Store) Option {
	return func(o *options) { o.store = s }
}

// WithAuditor records every envelope asynchronously.
func WithAuditor(a Auditor) Option {
	return func(o *options) { o.auditor = a }
}

// WithSleep replaces the executor's backoff wait.
func WithSleep(fn executor.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// WithClock replaces time.Now for the cache, monitor and latency.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Client serves one endpoint. It owns that endpoint's cache, health state
// and counters; separate clients share nothing.
type Client struct {
	name      string
	optimizer *optimizer.Optimizer
	cache     *cache.Cache
	monitor   *health.Monitor
	exec      *executor.Executor
	fallback  *fallback.Responder
	stats     *stats.Collector
	auditor   Auditor
	now       func() time.Time

	scopeBySession bool
	dedupe         bool
	group          singleflight.Group

	life    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	start   sync.Once
	closeMu sync.RWMutex
	closed  bool
}

// New builds a Client for endpoint. Configuration errors are returned here
// and never from Respond.
func New(cfg *config.Config, endpoint config.EndpointConfig, opts ...Option) (*Client, error) {
	o := options{backends: provider.New, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}

	endpoint.ApplyDefaults()
	scoped := *cfg
	scoped.Endpoints = []config.EndpointConfig{endpoint}
	if err := scoped.Validate(); err != nil {
		return nil, err
	}

	life, cancel := context.WithCancel(context.Background())
	backend, err := o.backends(life, endpoint)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("endpoint %s: %w", endpoint.Name, err)
	}

	classifier := executor.NewClassifier(cfg.Request.RetryableStatuses)
	monitor := health.New(endpoint.Name, backend, cfg.Health, classifier, health.WithClock(o.now))

	var execOpts []executor.Option
	if o.sleep != nil {
		execOpts = append(execOpts, executor.WithSleep(o.sleep))
	}

	c := &Client{
		name:           endpoint.Name,
		optimizer:      optimizer.New(cfg.Context),
		monitor:        monitor,
		exec:           executor.New(backend, monitor, executor.PolicyFromConfig(cfg.Request), classifier, execOpts...),
		fallback:       fallback.New(),
		stats:          stats.New(),
		auditor:        o.auditor,
		now:            o.now,
		scopeBySession: cfg.Cache.ScopeBySession,
		dedupe:         cfg.Request.Dedupe,
		life:           life,
		cancel:         cancel,
	}
	if cfg.Cache.Enabled {
		cacheOpts := []cache.Option{cache.WithClock(o.now)}
		if o.store != nil {
			cacheOpts = append(cacheOpts, cache.WithStore(o.store))
		}
		c.cache = cache.New(cfg.Cache, cacheOpts...)
	}
	return c, nil
}

// Name returns the endpoint name.
func (c *Client) Name() string { return c.name }

// Start launches the health monitor and cache sweeper. They stop when ctx
// is done or Close is called. Calling Start more than once has no effect.
func (c *Client) Start(ctx context.Context) {
	c.start.Do(func() {
		stop := context.AfterFunc(ctx, c.cancel)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer stop()
			c.monitor.Run(c.life)
		}()
		if c.cache != nil {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.cache.Run(c.life)
			}()
		}
	})
}

// Close stops background work, cancels in-flight shared calls and waits
// for pending audit writes.
func (c *Client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

// Respond answers one player input. It never fails: when neither the cache
// nor the service can answer, the envelope carries fallback text and the
// reason.
func (c *Client) Respond(ctx context.Context, raw models.RawContext, input, sessionID string) models.Envelope {
	start := c.now()
	env := models.Envelope{
		RequestID: uuid.NewString(),
		SessionID: sessionID,
		Endpoint:  c.name,
	}

	opt := c.optimizer.Optimize(raw)
	scope := ""
	if c.scopeBySession {
		scope = sessionID
	}
	key := cache.Key(c.name, opt.Payload, input, scope)

	if c.cache != nil {
		if text, ok := c.cache.Get(ctx, key); ok {
			env.Text = text
			env.Source = models.SourceCached
			return c.finish(env, input, models.OutcomeCacheHit, start)
		}
	}

	req := provider.Request{Context: opt, Input: input, SessionID: sessionID}
	res, err := c.call(ctx, key, req)
	env.Attempts = res.Attempts
	if err == nil {
		env.Text = res.Text
		env.Source = models.SourceLive
		return c.finish(env, input, models.OutcomeLive, start)
	}

	env.Text = c.fallback.Respond(input)
	env.Source = models.SourceFallback
	env.Reason = reason(ctx, res, err)
	outcome := models.OutcomeLiveFailure
	if res.Attempts == 0 {
		outcome = models.OutcomeFailFast
	}
	return c.finish(env, input, outcome, start)
}

type callResult struct {
	res executor.Result
	err error
}

// call runs the request, collapsing concurrent identical misses into one
// upstream call when dedupe is on. The shared call runs on the client's
// lifetime context so one caller giving up does not cancel it for others.
func (c *Client) call(ctx context.Context, key string, req provider.Request) (executor.Result, error) {
	if !c.dedupe {
		return c.fetch(ctx, key, req)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		res, err := c.fetch(c.life, key, req)
		return callResult{res: res, err: err}, nil
	})
	select {
	case <-ctx.Done():
		return executor.Result{}, ctx.Err()
	case r := <-ch:
		cr := r.Val.(callResult)
		return cr.res, cr.err
	}
}

// fetch calls the service once per request key, stores a success and
// reports the outcome to the monitor.
func (c *Client) fetch(ctx context.Context, key string, req provider.Request) (executor.Result, error) {
	res, err := c.exec.CallWithRetry(ctx, req)
	switch {
	case err == nil:
		c.monitor.Observe(nil)
		if c.cache != nil {
			if perr := c.cache.Put(ctx, key, res.Text); perr != nil {
				log.Printf("gateway: %s: cache put: %v", c.name, perr)
			}
		}
	case errors.Is(err, executor.ErrServiceUnavailable) && res.Attempts > 0:
		c.monitor.Observe(err)
	}
	if err != nil {
		log.Printf("gateway: %s: %v", c.name, err)
	}
	return res, err
}

func reason(ctx context.Context, res executor.Result, err error) string {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return models.ReasonCanceled
	case errors.Is(err, executor.ErrFatalRequest):
		return models.ReasonFatalRequest
	case errors.Is(err, executor.ErrServiceUnavailable) && res.Attempts == 0:
		return models.ReasonServiceUnhealthy
	default:
		return models.ReasonRetriesExhausted
	}
}

func (c *Client) finish(env models.Envelope, input string, outcome models.Outcome, start time.Time) models.Envelope {
	env.Latency = c.now().Sub(start)
	c.stats.Record(outcome, env.Latency)
	c.audit(env, input)
	return env
}

func (c *Client) audit(env models.Envelope, input string) {
	if c.auditor == nil {
		return
	}
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return
	}
	entry := models.EnvelopeAuditEntry(env, input, c.now())
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.auditor.Log(ctx, entry); err != nil {
			log.Printf("gateway: audit log error: %v", err)
		}
	}()
}

// Status reports the endpoint's health and counters. It never probes.
func (c *Client) Status() models.Status {
	h := c.monitor.Snapshot()
	s := c.stats.Snapshot()
	st := models.Status{
		Endpoint:            c.name,
		Health:              h.Status,
		ConsecutiveFailures: h.ConsecutiveFailures,
		LastCheckAt:         h.LastCheckAt,
		CacheHitRate:        s.CacheHitRate,
		MeanLatency:         s.MeanLatency,
		WorstCaseLatency:    c.exec.Policy().WorstCaseLatency(),
		Stats:               s,
	}
	if c.cache != nil {
		st.Cache = c.cache.Stats()
	}
	return st
}

// Check probes the endpoint immediately and records the result. Unlike
// Status it talks to the service.
func (c *Client) Check(ctx context.Context) models.HealthState {
	return c.monitor.CheckNow(ctx)
}
