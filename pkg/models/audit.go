package models

import "time"

// AuditEntry records one envelope handed back to a caller.
type AuditEntry struct {
	RequestID string    `json:"request_id"`
	Endpoint  string    `json:"endpoint"`
	SessionID string    `json:"session_id"`
	Input     string    `json:"input,omitempty"`
	Response  string    `json:"response,omitempty"`
	Source    Source    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	Attempts  int       `json:"attempts"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled" env:"NARRATOR_AUDIT_ENABLED"`
	DBPath        string   `yaml:"db_path" env:"NARRATOR_AUDIT_DB_PATH"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"` // "inputs", "responses"
	// ExcludeSources skips envelopes from these sources, e.g. "cached".
	ExcludeSources []string `yaml:"exclude_sources"`
	MaxBodySize    int      `yaml:"max_body_size"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Endpoint  string
	SessionID string
	Source    Source
	RequestID string
	Since     time.Time
	Limit     int
}

// AuditStat holds aggregate audit counts for a source/day combination.
type AuditStat struct {
	Source Source
	Day    string
	Count  int
}

// EnvelopeAuditEntry builds an audit entry from an envelope and its input.
func EnvelopeAuditEntry(env Envelope, input string, at time.Time) AuditEntry {
	return AuditEntry{
		RequestID: env.RequestID,
		Endpoint:  env.Endpoint,
		SessionID: env.SessionID,
		Input:     input,
		Response:  env.Text,
		Source:    env.Source,
		Reason:    env.Reason,
		Attempts:  env.Attempts,
		LatencyMs: env.LatencyMs(),
		CreatedAt: at,
	}
}
