package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *HTTP {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e := config.EndpointConfig{Name: "local", Type: config.EndpointHTTP, URL: srv.URL, APIKey: "sk-test", Model: "narrator-small"}
	e.ApplyDefaults()
	return NewHTTP(e)
}

func testRequest() Request {
	return Request{
		Context: models.OptimizedContext{Location: "crypt", Payload: `{"location":"crypt"}`},
		Input:   "look around",
	}
}

func TestHTTPComplete(t *testing.T) {
	var got models.ChatCompletionRequest
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":" Dust hangs in the air. "}}]}`))
	})

	text, err := b.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if text != "Dust hangs in the air." {
		t.Errorf("unexpected text %q", text)
	}
	if got.Model != "narrator-small" {
		t.Errorf("unexpected model %q", got.Model)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 512 {
		t.Errorf("expected default max_tokens 512, got %v", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if !strings.Contains(got.Messages[1].Content, `{"location":"crypt"}`) || !strings.Contains(got.Messages[1].Content, "look around") {
		t.Errorf("user turn missing payload or input: %q", got.Messages[1].Content)
	}
}

func TestHTTPStatusError(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := b.Complete(context.Background(), testRequest())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests || se.Body != "slow down" {
		t.Errorf("unexpected status error %+v", se)
	}
}

func TestHTTPMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `<html>`,
		"no choices": `{"choices":[]}`,
		"empty":      `{"choices":[{"message":{"content":"   "}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := b.Complete(context.Background(), testRequest())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestHTTPProbe(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/models" {
			t.Errorf("unexpected probe %s %s", r.Method, r.URL.Path)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	if err := b.Probe(context.Background()); err != nil {
		t.Fatalf("expected healthy probe, got %v", err)
	}
	healthy.Store(false)
	var se *StatusError
	if err := b.Probe(context.Background()); !errors.As(err, &se) || se.StatusCode != 503 {
		t.Errorf("expected 503 StatusError, got %v", err)
	}
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(context.Background(), config.EndpointConfig{Name: "x", Type: "carrier-pigeon"})
	if err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestNewSDKBackends(t *testing.T) {
	ctx := context.Background()
	for _, typ := range []string{config.EndpointOpenAI, config.EndpointAnthropic, config.EndpointGemini} {
		b, err := New(ctx, config.EndpointConfig{Name: typ, Type: typ, APIKey: "k", MaxTokens: 64})
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if b.Name() != typ {
			t.Errorf("expected name %s, got %s", typ, b.Name())
		}
	}
}

func TestSDKErrorsMapToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	b := NewOpenAI(config.EndpointConfig{Name: "oa", APIKey: "k", URL: srv.URL + "/v1", MaxTokens: 16})
	_, err := b.Complete(context.Background(), testRequest())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 StatusError, got %v", err)
	}
}
