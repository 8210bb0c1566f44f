package models

import "time"

// HealthStatus is the monitor's belief about an endpoint.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
)

// HealthState is a point-in-time copy of an endpoint's health.
type HealthState struct {
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastCheckAt         time.Time    `json:"last_check_at"`
	LastError           string       `json:"last_error,omitempty"`
}
