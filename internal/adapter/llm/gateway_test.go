package llm

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/infra/resilience"
)

type scriptedClient struct {
	requests []CompletionRequest
	// responses are consumed in order; the last one repeats.
	responses []scriptedResponse
}

type scriptedResponse struct {
	text string
	err  error
}

func (s *scriptedClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scripted client: no responses configured")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp.text, resp.err
}

func testCatalog(enabled bool, providers map[domain.Provider]bool) *domain.ModelCatalog {
	return domain.NewModelCatalog(enabled, providers, map[domain.Task]domain.ModelBinding{
		domain.TaskResponse:    {Provider: domain.ProviderOpenAI, Model: "gpt-4.1", Temperature: 0.5},
		domain.TaskDeepPlanner: {Provider: domain.ProviderGoogle, Model: "gemini-2.5-pro", Temperature: 0.7},
	})
}

func testGateway(catalog *domain.ModelCatalog, openai, google Client) *TaskGateway {
	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
		MaxBackoff:     5 * time.Millisecond,
	}, slog.Default())
	return NewTaskGateway(catalog, openai, google, nil, executor, time.Second, slog.Default())
}

func TestTaskGateway_Generate_DispatchesToOpenAI(t *testing.T) {
	openai := &scriptedClient{responses: []scriptedResponse{{text: "the answer"}}}
	google := &scriptedClient{}
	gateway := testGateway(testCatalog(true, map[domain.Provider]bool{
		domain.ProviderOpenAI: true,
		domain.ProviderGoogle: true,
	}), openai, google)

	text, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:      domain.TaskResponse,
		System:    "answer from context",
		Prompt:    "question",
		MaxTokens: 512,
		JSON:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)
	assert.Empty(t, google.requests)

	require.Len(t, openai.requests, 1)
	req := openai.requests[0]
	assert.Equal(t, "gpt-4.1", req.Model)
	assert.Equal(t, "answer from context", req.System)
	assert.Equal(t, 512, req.MaxTokens)
	assert.True(t, req.JSONOutput)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.5, float64(*req.Temperature), 0.001)
	assert.False(t, req.Reasoning)
}

func TestTaskGateway_Generate_DispatchesToGoogle(t *testing.T) {
	openai := &scriptedClient{}
	google := &scriptedClient{responses: []scriptedResponse{{text: "plan"}}}
	gateway := testGateway(testCatalog(true, map[domain.Provider]bool{
		domain.ProviderOpenAI: true,
		domain.ProviderGoogle: true,
	}), openai, google)

	text, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:   domain.TaskDeepPlanner,
		Prompt: "evaluate the evidence",
	})
	require.NoError(t, err)
	assert.Equal(t, "plan", text)
	assert.Empty(t, openai.requests)
	require.Len(t, google.requests, 1)
	assert.Equal(t, "gemini-2.5-pro", google.requests[0].Model)
}

func TestTaskGateway_Generate_ReasoningOmitsTemperature(t *testing.T) {
	google := &scriptedClient{responses: []scriptedResponse{{text: "verdict"}}}
	gateway := testGateway(testCatalog(true, map[domain.Provider]bool{
		domain.ProviderOpenAI: true,
		domain.ProviderGoogle: true,
	}), &scriptedClient{}, google)

	_, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:      domain.TaskDeepPlanner,
		Prompt:    "evaluate",
		Reasoning: true,
	})
	require.NoError(t, err)

	require.Len(t, google.requests, 1)
	assert.Nil(t, google.requests[0].Temperature)
	assert.True(t, google.requests[0].Reasoning)
}

func TestTaskGateway_Generate_DisabledProviderNeverCalls(t *testing.T) {
	openai := &scriptedClient{responses: []scriptedResponse{{text: "unreachable"}}}
	gateway := testGateway(testCatalog(true, map[domain.Provider]bool{
		domain.ProviderOpenAI: false,
		domain.ProviderGoogle: true,
	}), openai, &scriptedClient{})

	_, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:   domain.TaskResponse,
		Prompt: "question",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderDisabled)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, openai.requests, "a disabled provider must fail before any call")
}

func TestTaskGateway_Generate_AIDisabledNeverCalls(t *testing.T) {
	openai := &scriptedClient{responses: []scriptedResponse{{text: "unreachable"}}}
	gateway := testGateway(testCatalog(false, map[domain.Provider]bool{
		domain.ProviderOpenAI: true,
		domain.ProviderGoogle: true,
	}), openai, &scriptedClient{})

	_, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:   domain.TaskResponse,
		Prompt: "question",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAIDisabled)
	assert.Empty(t, openai.requests)
}

func TestTaskGateway_Generate_UnboundTask(t *testing.T) {
	gateway := testGateway(testCatalog(true, map[domain.Provider]bool{
		domain.ProviderOpenAI: true,
	}), &scriptedClient{}, &scriptedClient{})

	_, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:   domain.TaskRerank,
		Prompt: "order these",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTaskUnbound)
}

func TestTaskGateway_Generate_RetriesTransportErrors(t *testing.T) {
	openai := &scriptedClient{responses: []scriptedResponse{
		{err: fmt.Errorf("openai call: %w: connection reset", domain.ErrTransport)},
		{text: "recovered"},
	}}
	gateway := testGateway(testCatalog(true, map[domain.Provider]bool{
		domain.ProviderOpenAI: true,
		domain.ProviderGoogle: true,
	}), openai, &scriptedClient{})

	text, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:   domain.TaskResponse,
		Prompt: "question",
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Len(t, openai.requests, 2)
}

func TestTaskGateway_Generate_MalformedOutputNotRetried(t *testing.T) {
	openai := &scriptedClient{responses: []scriptedResponse{
		{err: fmt.Errorf("parse: %w: not json", domain.ErrMalformedOutput)},
	}}
	gateway := testGateway(testCatalog(true, map[domain.Provider]bool{
		domain.ProviderOpenAI: true,
		domain.ProviderGoogle: true,
	}), openai, &scriptedClient{})

	_, err := gateway.Generate(context.Background(), domain.GenerateInput{
		Task:   domain.TaskResponse,
		Prompt: "question",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)
	assert.Len(t, openai.requests, 1, "terminal errors must not burn retries")
}

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		recorded  bool
	}{
		{"transport", fmt.Errorf("x: %w", domain.ErrTransport), true, true},
		{"timeout", fmt.Errorf("x: %w", domain.ErrTimeout), true, true},
		{"malformed", fmt.Errorf("x: %w", domain.ErrMalformedOutput), false, false},
		{"configuration", domain.ErrAIDisabled, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := classifyProviderError(tt.err)
			assert.Equal(t, tt.retryable, class.Retryable)
			assert.Equal(t, tt.recorded, class.RecordFailure)
		})
	}
}
