package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"copilot-orchestrator/internal/domain"
)

// Synthesizer produces the final cited answer from a run's accumulated
// evidence.
type Synthesizer interface {
	Synthesize(ctx context.Context, run *domain.PipelineRun) (*domain.CitedAnswer, error)
}

// DirectResponder answers without retrieval, from the model and the
// conversation alone. Used for the direct mode and when the intent router
// signals that no context is needed.
type DirectResponder interface {
	Respond(ctx context.Context, question, history string) (string, error)
}

type synthesizer struct {
	gateway   domain.GenerationGateway
	guard     AnswerGuard
	maxTokens int
	log       *slog.Logger
}

func NewSynthesizer(gateway domain.GenerationGateway, guard AnswerGuard, maxTokens int, log *slog.Logger) Synthesizer {
	return &synthesizer{gateway: gateway, guard: guard, maxTokens: maxTokens, log: log}
}

func (s *synthesizer) Synthesize(ctx context.Context, run *domain.PipelineRun) (*domain.CitedAnswer, error) {
	system, prompt := buildAnswerPrompt(run.Question, run.History, run.Documents)
	raw, err := s.gateway.Generate(ctx, domain.GenerateInput{
		Task:      domain.TaskResponse,
		System:    system,
		Prompt:    prompt,
		MaxTokens: s.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	answer, err := s.guard.Validate(raw, run.SourceIDs())
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	if len(answer.Citations) == 0 && len(run.Documents) > 0 {
		s.log.WarnContext(ctx, "synthesized answer carries no valid citations",
			"documents", len(run.Documents))
	}
	return answer, nil
}

type directResponder struct {
	gateway   domain.GenerationGateway
	maxTokens int
	log       *slog.Logger
}

func NewDirectResponder(gateway domain.GenerationGateway, maxTokens int, log *slog.Logger) DirectResponder {
	return &directResponder{gateway: gateway, maxTokens: maxTokens, log: log}
}

func (d *directResponder) Respond(ctx context.Context, question, history string) (string, error) {
	system, prompt := buildDirectPrompt(question, history)
	raw, err := d.gateway.Generate(ctx, domain.GenerateInput{
		Task:      domain.TaskNoContext,
		System:    system,
		Prompt:    prompt,
		MaxTokens: d.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("direct answer: %w", err)
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", fmt.Errorf("direct answer: %w: empty response", domain.ErrMalformedOutput)
	}
	return answer, nil
}
