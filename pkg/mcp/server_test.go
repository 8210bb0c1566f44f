package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/gateway"
	"github.com/pario-ai/narrator/pkg/models"
	"github.com/pario-ai/narrator/pkg/provider"
)

type stubBackend struct{ text string }

func (s stubBackend) Name() string { return "stub" }

func (s stubBackend) Complete(context.Context, provider.Request) (string, error) {
	return s.text, nil
}

func (s stubBackend) Probe(context.Context) error { return nil }

// fakeAuditor implements AuditSearcher for testing.
type fakeAuditor struct {
	entries []models.AuditEntry
	last    models.AuditQueryOpts
}

func (f *fakeAuditor) Query(_ context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	f.last = opts
	return f.entries, nil
}

func newTestPool(t *testing.T) *gateway.Pool {
	t.Helper()
	cfg := config.Default()
	cfg.Endpoints = []config.EndpointConfig{{Name: "default", URL: "http://narrator.invalid"}}
	pool, err := gateway.NewPool(cfg, gateway.WithBackend(stubBackend{text: "The torch gutters."}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`3`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	json.Unmarshal(data, &result)
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	json.Unmarshal(data, &result)

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "narrator" {
		t.Errorf("server name = %s, want narrator", result.ServerInfo.Name)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	json.Unmarshal(data, &result)

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"narrator_respond", "narrator_status", "narrator_cache_stats", "narrator_audit_search"} {
		if !names[want] {
			t.Errorf("missing tool: %s", want)
		}
	}
	if len(result.Tools) != len(toolHandlers) {
		t.Errorf("got %d tools, %d handlers", len(result.Tools), len(toolHandlers))
	}
}

func TestToolCallRespond(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")

	result := callTool(t, srv, "narrator_respond",
		`{"input":"light torch","session_id":"s1","context":{"location":"Crypt"}}`)
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content[0].Text)
	}
	text := result.Content[0].Text
	if !strings.Contains(text, "The torch gutters.") || !strings.Contains(text, "source=live") {
		t.Errorf("unexpected output: %s", text)
	}

	// same request is now served from cache
	result = callTool(t, srv, "narrator_respond",
		`{"input":"light torch","session_id":"s1","context":{"location":"Crypt"}}`)
	if !strings.Contains(result.Content[0].Text, "source=cached") {
		t.Errorf("expected cached source, got: %s", result.Content[0].Text)
	}
}

func TestToolCallRespondUnknownEndpoint(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")

	result := callTool(t, srv, "narrator_respond", `{"endpoint":"nope","input":"look"}`)
	if !result.IsError {
		t.Error("expected isError=true for unknown endpoint")
	}
}

func TestToolCallStatus(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")

	result := callTool(t, srv, "narrator_status", `{}`)
	text := result.Content[0].Text
	if !strings.Contains(text, "default") || !strings.Contains(text, "healthy") {
		t.Errorf("unexpected status output: %s", text)
	}
}

func TestToolCallCacheStats(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")
	callTool(t, srv, "narrator_respond", `{"input":"look"}`)
	callTool(t, srv, "narrator_respond", `{"input":"look"}`)

	result := callTool(t, srv, "narrator_cache_stats", `{"endpoint":"default"}`)
	text := result.Content[0].Text
	if !strings.Contains(text, "Entries:   1") || !strings.Contains(text, "Hits:      1") {
		t.Errorf("unexpected cache stats output: %s", text)
	}
}

func TestToolCallAuditNotConfigured(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")

	result := callTool(t, srv, "narrator_audit_search", `{}`)
	if !strings.Contains(result.Content[0].Text, "not configured") {
		t.Errorf("expected 'not configured', got: %s", result.Content[0].Text)
	}
}

func TestToolCallAuditSearch(t *testing.T) {
	aud := &fakeAuditor{entries: []models.AuditEntry{{
		RequestID: "req-42",
		Endpoint:  "default",
		Source:    models.SourceFallback,
		Reason:    models.ReasonServiceUnhealthy,
		CreatedAt: time.Now(),
	}}}
	srv := New(newTestPool(t), aud, "test")

	result := callTool(t, srv, "narrator_audit_search", `{"source":"fallback","since":"2026-01-02"}`)
	text := result.Content[0].Text
	if !strings.Contains(text, "req-42") || !strings.Contains(text, "service_unhealthy") {
		t.Errorf("unexpected audit output: %s", text)
	}
	if aud.last.Source != models.SourceFallback {
		t.Errorf("source filter = %q", aud.last.Source)
	}
	if aud.last.Since.Format("2006-01-02") != "2026-01-02" {
		t.Errorf("since filter = %v", aud.last.Since)
	}

	result = callTool(t, srv, "narrator_audit_search", `{"since":"yesterday"}`)
	if !result.IsError {
		t.Error("expected isError=true for bad date")
	}
}

func TestUnknownTool(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")
	result := callTool(t, srv, "narrator_nope", `{}`)
	if !result.IsError {
		t.Error("expected isError=true for unknown tool")
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")

	line, _ := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  "notifications/initialized",
	})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)

	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestParseError(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")

	var out bytes.Buffer
	_ = srv.Run(context.Background(), strings.NewReader("{not json\n"), &out)

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got %+v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(newTestPool(t), nil, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`9`),
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}
