package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pario-ai/narrator/pkg/models"
)

type respondArgs struct {
	Endpoint  string            `json:"endpoint"`
	SessionID string            `json:"session_id"`
	Input     string            `json:"input"`
	Context   models.RawContext `json:"context"`
}

type endpointArgs struct {
	Endpoint string `json:"endpoint"`
}

type auditSearchArgs struct {
	Endpoint  string `json:"endpoint"`
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
	Since     string `json:"since"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"narrator_respond":      handleRespond,
	"narrator_status":       handleStatus,
	"narrator_cache_stats":  handleCacheStats,
	"narrator_audit_search": handleAuditSearch,
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "narrator_respond",
		Description: "Narrate the outcome of a player action given the current game context. Falls back to canned text when the inference service is down.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"input"},
			"properties": map[string]any{
				"input":      stringProp("The player's action, e.g. \"open the chest\""),
				"session_id": stringProp("Game session identifier (optional)"),
				"endpoint":   stringProp("Endpoint name (optional, defaults to the first configured)"),
				"context": map[string]any{
					"type":        "object",
					"description": "Game state: location, inventory, events, history, attributes",
				},
			},
		},
	},
	{
		Name:        "narrator_status",
		Description: "Show health, failure count, cache hit rate and latency for each endpoint.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"endpoint": stringProp("Endpoint name (optional, omit for all)"),
			},
		},
	},
	{
		Name:        "narrator_cache_stats",
		Description: "Show response cache statistics (entries, hits, misses, evictions, hit rate).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"endpoint": stringProp("Endpoint name (optional, omit for all)"),
			},
		},
	},
	{
		Name:        "narrator_audit_search",
		Description: "Search the response audit log with optional filters.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"endpoint":   stringProp("Filter by endpoint (optional)"),
				"source":     stringProp("Filter by source: live, cached or fallback (optional)"),
				"session_id": stringProp("Filter by session ID (optional)"),
				"since":      stringProp("Start date in YYYY-MM-DD format (optional)"),
			},
		},
	},
}

func handleRespond(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args respondArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	client, err := s.pool.Resolve(args.Endpoint)
	if err != nil {
		return errorResult(err.Error())
	}
	sessionID := args.SessionID
	if sessionID == "" {
		sessionID = args.Context.SessionID
	}
	env := client.Respond(ctx, args.Context, args.Input, sessionID)
	return textResult(formatEnvelope(env))
}

func (s *Server) statuses(endpoint string) ([]models.Status, error) {
	if endpoint == "" {
		return s.pool.Statuses(), nil
	}
	client, err := s.pool.Resolve(endpoint)
	if err != nil {
		return nil, err
	}
	return []models.Status{client.Status()}, nil
}

func handleStatus(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args endpointArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	statuses, err := s.statuses(args.Endpoint)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(formatStatuses(statuses))
}

func handleCacheStats(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args endpointArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	statuses, err := s.statuses(args.Endpoint)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(formatCacheStats(statuses))
}

func handleAuditSearch(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	opts := models.AuditQueryOpts{
		Endpoint:  args.Endpoint,
		Source:    models.Source(args.Source),
		SessionID: args.SessionID,
		Limit:     50,
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(FormatAuditEntries(entries))
}
