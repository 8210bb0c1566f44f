// Package executor issues calls to an inference backend with a per-attempt
// timeout, bounded retries and exponential backoff.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/narrator/pkg/provider"
)

var (
	// ErrServiceUnavailable means the endpoint is known to be down or every
	// attempt failed with a retryable error.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrFatalRequest means the service rejected the request in a way a
	// retry cannot fix.
	ErrFatalRequest = errors.New("fatal request")
)

// Gate reports whether calls should be attempted at all.
type Gate interface {
	Healthy() bool
}

// Result is the outcome of CallWithRetry.
type Result struct {
	Text     string
	Attempts int
	// Last is the final attempt's result, zero when no attempt was made.
	Last AttemptResult
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs requests against one backend.
type Executor struct {
	backend    provider.Backend
	gate       Gate
	policy     Policy
	classifier *Classifier
	sleep      SleepFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// New creates an Executor. gate may be nil, in which case every call is
// attempted.
func New(backend provider.Backend, gate Gate, policy Policy, classifier *Classifier, opts ...Option) *Executor {
	e := &Executor{
		backend:    backend,
		gate:       gate,
		policy:     policy,
		classifier: classifier,
		sleep:      sleepCtx,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() Policy { return e.policy }

// Execute makes exactly one attempt bounded by the policy timeout.
func (e *Executor) Execute(ctx context.Context, req provider.Request) AttemptResult {
	actx, cancel := context.WithTimeout(ctx, e.policy.Timeout)
	defer cancel()

	text, err := e.backend.Complete(actx, req)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; that is not the service's fault.
		return AttemptResult{Outcome: FatalFailure, Kind: KindCanceled, Err: ctx.Err()}
	}
	return e.classifier.Classify(text, err)
}

// CallWithRetry runs attempts until one succeeds, a fatal error occurs, or
// MaxAttempts is reached. It makes no attempt while the gate is unhealthy.
//
// Errors wrap ErrServiceUnavailable, ErrFatalRequest or the context's error.
func (e *Executor) CallWithRetry(ctx context.Context, req provider.Request) (Result, error) {
	if e.gate != nil && !e.gate.Healthy() {
		return Result{}, fmt.Errorf("%w: endpoint %s is unhealthy", ErrServiceUnavailable, e.backend.Name())
	}

	var res Result
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		res.Attempts = attempt
		res.Last = e.Execute(ctx, req)

		switch res.Last.Outcome {
		case Success:
			res.Text = res.Last.Text
			return res, nil
		case FatalFailure:
			if res.Last.Kind == KindCanceled {
				return res, res.Last.Err
			}
			return res, fmt.Errorf("%w: %s", ErrFatalRequest, res.Last.Error())
		}

		if attempt == e.policy.MaxAttempts {
			break
		}
		if err := e.sleep(ctx, e.policy.Backoff(attempt)); err != nil {
			return res, err
		}
	}
	return res, fmt.Errorf("%w after %d attempts: %s", ErrServiceUnavailable, res.Attempts, res.Last.Error())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
