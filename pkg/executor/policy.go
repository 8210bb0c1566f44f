package executor

import (
	"math"
	"time"

	"github.com/pario-ai/narrator/pkg/config"
)

// Policy is the retry schedule for one endpoint.
type Policy struct {
	MaxAttempts int
	Timeout     time.Duration
	BackoffBase time.Duration
	Multiplier  float64
	BackoffMax  time.Duration
}

// PolicyFromConfig builds a Policy from request settings.
func PolicyFromConfig(r config.RequestConfig) Policy {
	return Policy{
		MaxAttempts: r.MaxAttempts,
		Timeout:     r.Timeout,
		BackoffBase: r.BackoffBase,
		Multiplier:  r.BackoffMultiplier,
		BackoffMax:  r.BackoffMax,
	}
}

// Backoff returns the delay after the n-th failed attempt (n >= 1):
// base * multiplier^(n-1), capped at BackoffMax when it is set.
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 || p.BackoffBase <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BackoffBase) * math.Pow(mult, float64(n-1))
	if p.BackoffMax > 0 && d > float64(p.BackoffMax) {
		return p.BackoffMax
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Delays lists the backoff delays between attempts. There is one fewer
// delay than attempts; nothing is waited after the final attempt.
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, p.MaxAttempts-1)
	for i := range out {
		out[i] = p.Backoff(i + 1)
	}
	return out
}

// WorstCaseLatency is the longest a single call can take: every attempt
// hits its timeout and every backoff delay is waited in full.
func (p Policy) WorstCaseLatency() time.Duration {
	total := time.Duration(max(p.MaxAttempts, 0)) * p.Timeout
	for _, d := range p.Delays() {
		total += d
	}
	return total
}
