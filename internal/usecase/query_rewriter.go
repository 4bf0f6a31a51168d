package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"copilot-orchestrator/internal/domain"
)

// QueryRewriter turns a raw question plus conversation history into the
// structured retrieval query the search legs consume.
type QueryRewriter interface {
	Rewrite(ctx context.Context, question, history string) (domain.RewrittenQuery, error)
}

type queryRewriter struct {
	gateway domain.GenerationGateway
	log     *slog.Logger
}

func NewQueryRewriter(gateway domain.GenerationGateway, log *slog.Logger) QueryRewriter {
	return &queryRewriter{gateway: gateway, log: log}
}

func (r *queryRewriter) Rewrite(ctx context.Context, question, history string) (domain.RewrittenQuery, error) {
	system, prompt := buildRewritePrompt(question, history)
	raw, err := r.gateway.Generate(ctx, domain.GenerateInput{
		Task:   domain.TaskQueryRewrite,
		System: system,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return domain.RewrittenQuery{}, fmt.Errorf("rewrite query: %w", err)
	}

	var query domain.RewrittenQuery
	if err := decodeStructured(raw, &query); err != nil {
		return domain.RewrittenQuery{}, fmt.Errorf("rewrite query: %w", err)
	}

	query.SemanticQuery = strings.TrimSpace(query.SemanticQuery)
	query.KeywordQuery = strings.TrimSpace(query.KeywordQuery)
	if query.SemanticQuery == "" || query.KeywordQuery == "" {
		return domain.RewrittenQuery{}, fmt.Errorf("rewrite query: %w: missing semantic or keyword form", domain.ErrMalformedOutput)
	}

	r.log.DebugContext(ctx, "query rewritten",
		"semantic", query.SemanticQuery,
		"keyword", query.KeywordQuery,
	)
	return query, nil
}
