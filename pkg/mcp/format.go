package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/narrator/pkg/models"
)

// formatEnvelope renders a narration with its provenance footer.
func formatEnvelope(env models.Envelope) string {
	var b strings.Builder
	b.WriteString(env.Text)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "[source=%s", env.Source)
	if env.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", env.Reason)
	}
	fmt.Fprintf(&b, " endpoint=%s attempts=%d latency=%dms request=%s]",
		env.Endpoint, env.Attempts, env.LatencyMs(), env.RequestID)
	return b.String()
}

// formatStatuses formats endpoint statuses as a text table.
func formatStatuses(statuses []models.Status) string {
	if len(statuses) == 0 {
		return "No endpoints configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-10s %8s %8s %8s %10s %10s %-20s\n",
		"Endpoint", "Health", "Failures", "Requests", "Hit%", "Mean", "Worst", "Last Check")
	b.WriteString(strings.Repeat("-", 96) + "\n")
	for _, s := range statuses {
		last := "never"
		if !s.LastCheckAt.IsZero() {
			last = s.LastCheckAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(&b, "%-16s %-10s %8d %8d %7.1f%% %10s %10s %-20s\n",
			s.Endpoint, s.Health, s.ConsecutiveFailures, s.Stats.Requests,
			s.CacheHitRate*100,
			s.MeanLatency.Round(time.Millisecond), s.WorstCaseLatency, last)
	}
	return b.String()
}

// formatCacheStats formats per-endpoint cache stats as text.
func formatCacheStats(statuses []models.Status) string {
	if len(statuses) == 0 {
		return "No endpoints configured."
	}
	var b strings.Builder
	for i, s := range statuses {
		if i > 0 {
			b.WriteString("\n")
		}
		c := s.Cache
		fmt.Fprintf(&b, "Cache Statistics (%s)\n"+
			"  Entries:   %d\n"+
			"  Hits:      %d\n"+
			"  Misses:    %d\n"+
			"  Evictions: %d\n"+
			"  Hit Rate:  %.1f%%\n",
			s.Endpoint, c.Entries, c.Hits, c.Misses, c.Evictions, c.HitRate*100)
	}
	return b.String()
}

// FormatAuditEntries formats audit entries as a text table.
func FormatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-20s %-12s %-9s %-18s %4s %8s\n",
		"Request ID", "Time", "Endpoint", "Source", "Reason", "Try", "Latency")
	b.WriteString(strings.Repeat("-", 113) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-36s %-20s %-12s %-9s %-18s %4d %6dms\n",
			e.RequestID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Endpoint, e.Source, e.Reason, e.Attempts, e.LatencyMs)
	}
	return b.String()
}
