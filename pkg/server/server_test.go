package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Endpoints = []config.EndpointConfig{{Name: "default", URL: "http://narrator.invalid"}}
	pool, err := gateway.NewPool(cfg, gateway.WithBackend(stubBackend{text: "The gate groans open."}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return New(pool)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["upstreams"] != "healthy" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestRespond(t *testing.T) {
	s := newTestServer(t)
	payload := `{"session_id":"s1","input":"open gate","context":{"location":"Outer Wall","events":[{"category":"quest","text":"Find the key"}]}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/respond", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Narrator-Source") != "live" {
		t.Errorf("expected live source header, got %q", resp.Header.Get("X-Narrator-Source"))
	}
	got := decode[RespondResponse](t, resp)
	if got.Text != "The gate groans open." || got.Endpoint != "default" || got.SessionID != "s1" {
		t.Errorf("unexpected envelope %+v", got)
	}
	if got.RequestID == "" {
		t.Error("expected a request id")
	}
}

func TestRespondBadBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/respond", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRespondUnknownEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/respond", strings.NewReader(`{"endpoint":"nope","input":"look"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/status/default", nil))
	if err != nil {
		t.Fatal(err)
	}
	st := decode[models.Status](t, resp)
	if st.Endpoint != "default" || st.Health != models.Healthy {
		t.Errorf("unexpected status %+v", st)
	}
	if st.WorstCaseLatency == 0 {
		t.Error("expected worst-case latency to be reported")
	}

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if err != nil {
		t.Fatal(err)
	}
	all := decode[struct {
		Endpoints []models.Status `json:"endpoints"`
	}](t, resp)
	if len(all.Endpoints) != 1 {
		t.Errorf("expected 1 endpoint, got %d", len(all.Endpoints))
	}

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/v1/status/missing", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
