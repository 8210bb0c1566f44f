package models

import "time"

// Outcome is the terminal result of one gateway request.
type Outcome int

const (
	OutcomeCacheHit Outcome = iota
	OutcomeLive
	// OutcomeLiveFailure is a fallback after at least one network attempt.
	OutcomeLiveFailure
	// OutcomeFailFast is a fallback served without any network attempt.
	OutcomeFailFast
)

// StatsSnapshot is a read-only export of the request counters.
type StatsSnapshot struct {
	Requests      int64         `json:"requests"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	LiveSuccesses int64         `json:"live_successes"`
	LiveFailures  int64         `json:"live_failures"`
	FailFasts     int64         `json:"fail_fasts"`
	Fallbacks     int64         `json:"fallbacks"`
	MeanLatency   time.Duration `json:"mean_latency"`
	CacheHitRate  float64       `json:"cache_hit_rate"`
	ErrorRate     float64       `json:"error_rate"`
}

// Status is the operational view of one endpoint client.
type Status struct {
	Endpoint            string        `json:"endpoint"`
	Health              HealthStatus  `json:"health"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastCheckAt         time.Time     `json:"last_check_at"`
	CacheHitRate        float64       `json:"cache_hit_rate"`
	MeanLatency         time.Duration `json:"mean_latency"`
	WorstCaseLatency    time.Duration `json:"worst_case_latency"`
	Stats               StatsSnapshot `json:"stats"`
	Cache               CacheStats    `json:"cache"`
}
