package models

import "time"

// Source names the component that produced an envelope's text.
type Source string

const (
	SourceLive     Source = "live"
	SourceCached   Source = "cached"
	SourceFallback Source = "fallback"
)

// Fallback reasons reported in Envelope.Reason.
const (
	ReasonServiceUnhealthy = "service_unhealthy"
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonFatalRequest     = "fatal_request"
	ReasonCanceled         = "canceled"
)

// Envelope is the response returned to a caller for every request.
type Envelope struct {
	RequestID string        `json:"request_id"`
	SessionID string        `json:"session_id,omitempty"`
	Endpoint  string        `json:"endpoint"`
	Text      string        `json:"text"`
	Source    Source        `json:"source"`
	Reason    string        `json:"reason,omitempty"`
	Latency   time.Duration `json:"latency"`
	Attempts  int           `json:"attempts"`
}

// LatencyMs returns the envelope latency in whole milliseconds.
func (e Envelope) LatencyMs() int64 {
	return e.Latency.Milliseconds()
}
