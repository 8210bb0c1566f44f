package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

// ErrUnknownEndpoint is returned by Resolve for names not in the config.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// Pool holds one Client per configured endpoint.
type Pool struct {
	clients map[string]*Client
	order   []string
}

// NewPool builds a client for every endpoint in cfg. Options apply to all
// of them.
func NewPool(cfg *config.Config, opts ...Option) (*Pool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, &config.FieldError{Field: "endpoints", Reason: "at least one endpoint is required"}
	}
	resolved := *cfg
	resolved.Endpoints = append([]config.EndpointConfig(nil), cfg.Endpoints...)
	for i := range resolved.Endpoints {
		resolved.Endpoints[i].ApplyDefaults()
	}
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{clients: make(map[string]*Client, len(resolved.Endpoints))}
	for _, e := range resolved.Endpoints {
		c, err := New(&resolved, e, opts...)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.clients[e.Name] = c
		p.order = append(p.order, e.Name)
	}
	return p, nil
}

// Resolve returns the client for name. An empty name selects the first
// configured endpoint.
func (p *Pool) Resolve(name string) (*Client, error) {
	if name == "" {
		return p.clients[p.order[0]], nil
	}
	c, ok := p.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEndpoint, name)
	}
	return c, nil
}

// Names lists endpoints in configuration order.
func (p *Pool) Names() []string {
	return append([]string(nil), p.order...)
}

// Start starts every client.
func (p *Pool) Start(ctx context.Context) {
	for _, name := range p.order {
		p.clients[name].Start(ctx)
	}
}

// Statuses returns the status of every endpoint in configuration order.
func (p *Pool) Statuses() []models.Status {
	out := make([]models.Status, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.clients[name].Status())
	}
	return out
}

// Close closes every client.
func (p *Pool) Close() error {
	var errs []error
	for _, name := range p.order {
		if err := p.clients[name].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
