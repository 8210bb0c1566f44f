package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

const defaultAnthropicModel = "claude-haiku-4-5"

// Anthropic uses the official Messages API client.
type Anthropic struct {
	name      string
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic backend. The SDK's own retries are
// disabled; the executor owns retry policy.
func NewAnthropic(e config.EndpointConfig) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(e.APIKey),
		option.WithMaxRetries(0),
	}
	if e.URL != "" {
		opts = append(opts, option.WithBaseURL(e.URL))
	}
	model := e.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		name:      e.Name,
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(e.MaxTokens),
	}
}

func (p *Anthropic) Name() string { return p.name }

func (p *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
	}
	for _, m := range Messages(req) {
		switch m.Role {
		case models.RoleSystem:
			params.System = []anthropic.TextBlockParam{{Text: m.Content}}
		case models.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", anthropicError(err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(variant.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text content", ErrMalformedResponse)
	}
	return text, nil
}

func (p *Anthropic) Probe(ctx context.Context) error {
	_, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return anthropicError(err)
	}
	return nil
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return err
}
