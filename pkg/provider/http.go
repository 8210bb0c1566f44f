package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

// maxErrorBody bounds how much of an error body is kept in a StatusError.
const maxErrorBody = 512

// HTTP talks to any OpenAI-compatible chat completions server.
type HTTP struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	healthPath string
	maxTokens  int
	client     *http.Client
}

// NewHTTP creates a raw HTTP backend for e.
func NewHTTP(e config.EndpointConfig) *HTTP {
	return &HTTP{
		name:       e.Name,
		baseURL:    strings.TrimRight(e.URL, "/"),
		apiKey:     e.APIKey,
		model:      e.Model,
		healthPath: e.HealthPath,
		maxTokens:  e.MaxTokens,
		client:     http.DefaultClient,
	}
}

func (h *HTTP) Name() string { return h.name }

// Complete posts a chat completion request and returns the first choice.
func (h *HTTP) Complete(ctx context.Context, req Request) (string, error) {
	body := models.ChatCompletionRequest{
		Model:    h.model,
		Messages: Messages(req),
	}
	if h.maxTokens > 0 {
		body.MaxTokens = &h.maxTokens
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	res, err := h.do(ctx, http.MethodPost, "/v1/chat/completions", data)
	if err != nil {
		return "", err
	}

	var resp models.ChatCompletionResponse
	if err := json.Unmarshal(res, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}
	return text, nil
}

// Probe issues a GET against the configured health path.
func (h *HTTP) Probe(ctx context.Context) error {
	path := h.healthPath
	if path == "" {
		path = "/v1/models"
	}
	_, err := h.do(ctx, http.MethodGet, path, nil)
	return err
}

func (h *HTTP) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	target, err := url.Parse(h.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
