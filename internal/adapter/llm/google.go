package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"copilot-orchestrator/internal/domain"
)

// GoogleClient wraps the Gemini API through the genai SDK.
type GoogleClient struct {
	client *genai.Client
}

func NewGoogleClient(ctx context.Context, apiKey string) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GoogleClient{client: client}, nil
}

func (c *GoogleClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}

	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	if !req.Reasoning {
		// Thinking off for plain stages; reasoning stages keep the default
		// budget.
		var budget int32
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	result, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("gemini call: %w: %w", domain.ErrTimeout, err)
		}
		return "", fmt.Errorf("gemini call: %w: %w", domain.ErrTransport, err)
	}

	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w: no candidates returned", domain.ErrTransport)
	}

	candidate := result.Candidates[0]
	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}
	return text, nil
}
