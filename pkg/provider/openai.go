package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pario-ai/narrator/pkg/config"
)

// OpenAI uses the go-openai client.
type OpenAI struct {
	name      string
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI backend. A URL overrides the default API base.
func NewOpenAI(e config.EndpointConfig) *OpenAI {
	cfg := openai.DefaultConfig(e.APIKey)
	if e.URL != "" {
		cfg.BaseURL = strings.TrimRight(e.URL, "/")
	}
	model := e.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		name:      e.Name,
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: e.MaxTokens,
	}
}

func (p *OpenAI) Name() string { return p.name }

func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	msgs := Messages(req)
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  oaMsgs,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", openAIError(err)
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

// Probe lists models, which needs a valid key but no tokens.
func (p *OpenAI) Probe(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		return openAIError(err)
	}
	return nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
