package usecase

import (
	"context"
	"log/slog"

	"copilot-orchestrator/internal/domain"
)

// FilterPlanner scopes structured-record retrieval to the databases and
// fields relevant to a question. Planning is advisory: any failure degrades
// to the empty plan (search everything) rather than failing the turn.
type FilterPlanner interface {
	Plan(ctx context.Context, question string, candidates []domain.DatabaseDescriptor) domain.DatabaseFilterPlan
}

type filterPlanner struct {
	gateway domain.GenerationGateway
	log     *slog.Logger
}

func NewFilterPlanner(gateway domain.GenerationGateway, log *slog.Logger) FilterPlanner {
	return &filterPlanner{gateway: gateway, log: log}
}

func (p *filterPlanner) Plan(ctx context.Context, question string, candidates []domain.DatabaseDescriptor) domain.DatabaseFilterPlan {
	if len(candidates) == 0 {
		return domain.DatabaseFilterPlan{}
	}

	system, prompt := buildFilterPrompt(question, candidates)
	raw, err := p.gateway.Generate(ctx, domain.GenerateInput{
		Task:   domain.TaskDatabaseFilter,
		System: system,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		p.log.WarnContext(ctx, "filter planning failed, searching unscoped", "error", err)
		return domain.DatabaseFilterPlan{}
	}

	var plan domain.DatabaseFilterPlan
	if err := decodeStructured(raw, &plan); err != nil {
		p.log.WarnContext(ctx, "filter plan unparsable, searching unscoped", "error", err)
		return domain.DatabaseFilterPlan{}
	}

	clean := plan.Sanitize(candidates)
	if dropped := len(plan.DatabaseIDs) - len(clean.DatabaseIDs); dropped > 0 {
		p.log.WarnContext(ctx, "filter plan referenced unknown databases",
			"dropped", dropped, "kept", len(clean.DatabaseIDs))
	}
	return clean
}
