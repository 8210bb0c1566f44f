package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// FieldError describes one invalid setting.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalid, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalid.
func (e *FieldError) Unwrap() error {
	return ErrInvalid
}

// Validate reports every invalid setting joined into one error.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i, e := range c.Endpoints {
		field := fmt.Sprintf("endpoints[%d]", i)
		if e.Name == "" {
			bad(field+".name", "is required")
		} else if seen[e.Name] {
			bad(field+".name", "duplicate endpoint %q", e.Name)
		}
		seen[e.Name] = true
		switch e.Type {
		case EndpointHTTP:
			if e.URL == "" {
				bad(field+".url", "is required for http endpoints")
			}
		case EndpointOpenAI, EndpointAnthropic, EndpointGemini:
		default:
			bad(field+".type", "unknown endpoint type %q", e.Type)
		}
		if e.MaxTokens < 0 {
			bad(field+".max_tokens", "must not be negative")
		}
	}

	errs = append(errs, c.Request.validate()...)
	errs = append(errs, c.Health.validate()...)
	errs = append(errs, c.Cache.validate()...)
	errs = append(errs, c.Context.validate()...)

	if c.Audit.Enabled && c.Audit.DBPath == "" {
		bad("audit.db_path", "is required when audit is enabled")
	}
	return errors.Join(errs...)
}

func (r RequestConfig) validate() []error {
	var errs []error
	if r.Timeout <= 0 {
		errs = append(errs, &FieldError{"request.timeout", "must be positive"})
	}
	if r.MaxAttempts < 1 {
		errs = append(errs, &FieldError{"request.max_attempts", "must be at least 1"})
	}
	if r.BackoffBase < 0 {
		errs = append(errs, &FieldError{"request.backoff_base", "must not be negative"})
	}
	if r.BackoffMultiplier < 1 {
		errs = append(errs, &FieldError{"request.backoff_multiplier", "must be at least 1"})
	}
	if r.BackoffMax < 0 {
		errs = append(errs, &FieldError{"request.backoff_max", "must not be negative"})
	}
	for _, code := range r.RetryableStatuses {
		if code < 100 || code > 599 {
			errs = append(errs, &FieldError{"request.retryable_statuses", fmt.Sprintf("%d is not an HTTP status", code)})
		}
	}
	return errs
}

func (h HealthConfig) validate() []error {
	var errs []error
	if h.Interval <= 0 {
		errs = append(errs, &FieldError{"health.interval", "must be positive"})
	}
	if h.Timeout <= 0 {
		errs = append(errs, &FieldError{"health.timeout", "must be positive"})
	}
	if h.UnhealthyThreshold < 1 {
		errs = append(errs, &FieldError{"health.unhealthy_threshold", "must be at least 1"})
	}
	return errs
}

func (c CacheConfig) validate() []error {
	var errs []error
	if c.TTL <= 0 {
		errs = append(errs, &FieldError{"cache.ttl", "must be positive"})
	}
	if c.Capacity < 1 {
		errs = append(errs, &FieldError{"cache.capacity", "must be at least 1"})
	}
	if c.EvictFraction <= 0 || c.EvictFraction > 1 {
		errs = append(errs, &FieldError{"cache.evict_fraction", "must be in (0, 1]"})
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, &FieldError{"cache.sweep_interval", "must be positive"})
	}
	switch c.Store.Type {
	case "", StoreNone:
	case StoreSQLite:
		if c.Store.DBPath == "" {
			errs = append(errs, &FieldError{"cache.store.db_path", "is required for sqlite store"})
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, &FieldError{"cache.store.redis_addr", "is required for redis store"})
		}
	default:
		errs = append(errs, &FieldError{"cache.store.type", fmt.Sprintf("unknown store type %q", c.Store.Type)})
	}
	return errs
}

func (c ContextConfig) validate() []error {
	var errs []error
	if c.MaxChars < 16 {
		errs = append(errs, &FieldError{"context.max_chars", "must be at least 16"})
	}
	if c.InventoryThreshold < 0 {
		errs = append(errs, &FieldError{"context.inventory_threshold", "must not be negative"})
	}
	if c.EventLimit < 0 {
		errs = append(errs, &FieldError{"context.event_limit", "must not be negative"})
	}
	if c.HistoryMessages < 0 {
		errs = append(errs, &FieldError{"context.history_messages", "must not be negative"})
	}
	if c.HistoryTokens < 0 {
		errs = append(errs, &FieldError{"context.history_tokens", "must not be negative"})
	}
	return errs
}
