// Package provider adapts external inference services to a single Backend
// interface. Every backend reports upstream rejections as *StatusError so
// one classifier can decide what is worth retrying.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

// ErrMalformedResponse is returned when the service answers with a body
// that carries no usable text.
var ErrMalformedResponse = errors.New("malformed response")

// Request is one narration request sent upstream.
type Request struct {
	Context   models.OptimizedContext
	Input     string
	SessionID string
}

// Backend is an external inference service.
type Backend interface {
	Name() string
	// Complete returns the response text for req.
	Complete(ctx context.Context, req Request) (string, error)
	// Probe performs a cheap liveness check.
	Probe(ctx context.Context) error
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// New builds the backend for an endpoint.
func New(ctx context.Context, e config.EndpointConfig) (Backend, error) {
	switch e.Type {
	case config.EndpointHTTP, "":
		return NewHTTP(e), nil
	case config.EndpointOpenAI:
		return NewOpenAI(e), nil
	case config.EndpointAnthropic:
		return NewAnthropic(e), nil
	case config.EndpointGemini:
		return NewGemini(ctx, e)
	default:
		return nil, fmt.Errorf("endpoint %s: unknown type %q", e.Name, e.Type)
	}
}
