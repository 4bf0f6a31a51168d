package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/infra/resilience"
)

// TaskGateway implements domain.GenerationGateway. It resolves the task
// through the model catalog, dispatches on the provider tag, and wraps the
// call with the rate limiter, the resilience executor, and the stage
// timeout. Enablement failures surface from resolution, before any of that
// machinery runs.
type TaskGateway struct {
	catalog      *domain.ModelCatalog
	openai       Client
	google       Client
	limiters     map[domain.Provider]*rate.Limiter
	executor     *resilience.Executor
	stageTimeout time.Duration
	log          *slog.Logger
}

func NewTaskGateway(
	catalog *domain.ModelCatalog,
	openai Client,
	google Client,
	limiters map[domain.Provider]*rate.Limiter,
	executor *resilience.Executor,
	stageTimeout time.Duration,
	log *slog.Logger,
) *TaskGateway {
	if log == nil {
		log = slog.Default()
	}
	return &TaskGateway{
		catalog:      catalog,
		openai:       openai,
		google:       google,
		limiters:     limiters,
		executor:     executor,
		stageTimeout: stageTimeout,
		log:          log,
	}
}

func (g *TaskGateway) Generate(ctx context.Context, in domain.GenerateInput) (string, error) {
	handle, err := g.resolve(in)
	if err != nil {
		return "", err
	}

	client, err := g.clientFor(handle.Provider)
	if err != nil {
		return "", fmt.Errorf("task %s: %w", in.Task, err)
	}

	if limiter := g.limiters[handle.Provider]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("task %s: rate limit wait: %w", in.Task, err)
		}
	}

	req := CompletionRequest{
		Model:       handle.Model,
		System:      in.System,
		Prompt:      in.Prompt,
		MaxTokens:   in.MaxTokens,
		Temperature: handle.Temperature,
		JSONOutput:  in.JSON,
		Reasoning:   handle.Reasoning,
	}

	started := time.Now()
	var text string
	err = g.executor.Execute(ctx, "llm."+string(handle.Provider), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.stageTimeout)
		defer cancel()

		var callErr error
		text, callErr = client.Complete(callCtx, req)
		return callErr
	}, classifyProviderError)

	if err != nil {
		return "", fmt.Errorf("task %s (%s/%s): %w", in.Task, handle.Provider, handle.Model, err)
	}

	g.log.DebugContext(ctx, "model call finished",
		"task", in.Task,
		"provider", handle.Provider,
		"model", handle.Model,
		"reasoning", handle.Reasoning,
		"duration", time.Since(started).String(),
	)
	return text, nil
}

func (g *TaskGateway) resolve(in domain.GenerateInput) (domain.ModelHandle, error) {
	if in.Reasoning {
		return g.catalog.ResolveReasoning(in.Task)
	}
	return g.catalog.Resolve(in.Task)
}

func (g *TaskGateway) clientFor(provider domain.Provider) (Client, error) {
	var client Client
	switch provider {
	case domain.ProviderOpenAI:
		client = g.openai
	case domain.ProviderGoogle:
		client = g.google
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, provider)
	}
	if client == nil {
		return nil, fmt.Errorf("%s: %w", provider, domain.ErrProviderDisabled)
	}
	return client, nil
}

// classifyProviderError retries transport and timeout failures; anything
// else (malformed output, configuration) is terminal and does not count
// toward the breaker.
func classifyProviderError(err error) resilience.ErrorClassification {
	if errors.Is(err, domain.ErrTransport) || errors.Is(err, domain.ErrTimeout) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
}
