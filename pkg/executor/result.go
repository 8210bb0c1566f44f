package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/pario-ai/narrator/pkg/provider"
)

// Outcome tags an AttemptResult.
type Outcome int

const (
	Success Outcome = iota
	RetryableFailure
	FatalFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case FatalFailure:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FailureKind says why an attempt failed.
type FailureKind string

const (
	KindNone       FailureKind = ""
	KindTimeout    FailureKind = "timeout"
	KindConnection FailureKind = "connection"
	KindStatus     FailureKind = "status"
	KindMalformed  FailureKind = "malformed"
	KindCanceled   FailureKind = "canceled"
)

// AttemptResult is the outcome of a single call to the service.
type AttemptResult struct {
	Outcome    Outcome
	Text       string
	Kind       FailureKind
	StatusCode int
	Err        error
}

// Retryable reports whether another attempt may succeed.
func (r AttemptResult) Retryable() bool { return r.Outcome == RetryableFailure }

// Error describes a failed attempt. It is empty for successes.
func (r AttemptResult) Error() string {
	if r.Outcome == Success {
		return ""
	}
	if r.StatusCode != 0 {
		return fmt.Sprintf("%s (%s %d): %v", r.Outcome, r.Kind, r.StatusCode, r.Err)
	}
	return fmt.Sprintf("%s (%s): %v", r.Outcome, r.Kind, r.Err)
}

// Classifier maps call errors onto AttemptResults.
type Classifier struct {
	retryable map[int]bool
}

// NewClassifier treats the given HTTP statuses as retryable.
func NewClassifier(statuses []int) *Classifier {
	c := &Classifier{retryable: make(map[int]bool, len(statuses))}
	for _, s := range statuses {
		c.retryable[s] = true
	}
	return c
}

// Classify turns the result of one call into an AttemptResult. Errors the
// classifier does not recognise are treated as transport failures.
func (c *Classifier) Classify(text string, err error) AttemptResult {
	if err == nil {
		return AttemptResult{Outcome: Success, Text: text}
	}

	var se *provider.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return AttemptResult{Outcome: FatalFailure, Kind: KindCanceled, Err: err}
	case errors.As(err, &se):
		outcome := FatalFailure
		if c.retryable[se.StatusCode] {
			outcome = RetryableFailure
		}
		return AttemptResult{Outcome: outcome, Kind: KindStatus, StatusCode: se.StatusCode, Err: err}
	case errors.Is(err, provider.ErrMalformedResponse):
		return AttemptResult{Outcome: FatalFailure, Kind: KindMalformed, Err: err}
	case isTimeout(err):
		return AttemptResult{Outcome: RetryableFailure, Kind: KindTimeout, Err: err}
	default:
		return AttemptResult{Outcome: RetryableFailure, Kind: KindConnection, Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
