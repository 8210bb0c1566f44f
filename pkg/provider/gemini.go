package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini uses the Google Gen AI SDK against the Gemini API.
type Gemini struct {
	name      string
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, e config.EndpointConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  e.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if e.URL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: e.URL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := e.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		name:      e.Name,
		client:    client,
		model:     model,
		maxTokens: int32(e.MaxTokens),
	}, nil
}

func (p *Gemini) Name() string { return p.name }

func (p *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	gc := &genai.GenerateContentConfig{MaxOutputTokens: p.maxTokens}
	var contents []*genai.Content
	for _, m := range Messages(req) {
		switch m.Role {
		case models.RoleSystem:
			gc.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case models.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, gc)
	if err != nil {
		return "", geminiError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	return text, nil
}

// Probe fetches the configured model's metadata.
func (p *Gemini) Probe(ctx context.Context) error {
	_, err := p.client.Models.Get(ctx, p.model, nil)
	if err != nil {
		return geminiError(err)
	}
	return nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return &StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiPtr *genai.APIError
	if errors.As(err, &apiPtr) && apiPtr.Code != 0 {
		return &StatusError{StatusCode: apiPtr.Code, Body: apiPtr.Message}
	}
	return err
}
