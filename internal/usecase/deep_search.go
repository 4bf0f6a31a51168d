package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"copilot-orchestrator/internal/domain"
)

// DeepSearchController runs the iterative retrieval loop: retrieve and
// rerank, ask the planner whether the evidence suffices, and either stop or
// adopt the planner's refined query for another pass.
//
// Termination is guaranteed three ways: the planner says sufficient, the
// retrieval-pass budget runs out (normal termination, not an error), or an
// insufficient verdict arrives without a usable refined query (forced stop,
// so a malformed verdict can never loop forever).
type DeepSearchController interface {
	Run(ctx context.Context, run *domain.PipelineRun, opts domain.RetrievalOptions) error
}

type searchState int

const (
	stateRetrieve searchState = iota
	stateEvaluate
	stateRefine
	stateDone
)

type deepSearchController struct {
	gateway       domain.GenerationGateway
	retriever     domain.Retriever
	reranker      Reranker
	maxIterations int
	maxResults    int
	log           *slog.Logger
}

func NewDeepSearchController(
	gateway domain.GenerationGateway,
	retriever domain.Retriever,
	reranker Reranker,
	maxIterations, maxResults int,
	log *slog.Logger,
) DeepSearchController {
	if maxIterations <= 0 {
		maxIterations = 1
	}
	return &deepSearchController{
		gateway:       gateway,
		retriever:     retriever,
		reranker:      reranker,
		maxIterations: maxIterations,
		maxResults:    maxResults,
		log:           log,
	}
}

func (c *deepSearchController) Run(ctx context.Context, run *domain.PipelineRun, opts domain.RetrievalOptions) error {
	query, ok := run.ActiveQuery()
	if !ok {
		return fmt.Errorf("deep search: run has no active query")
	}

	state := stateRetrieve
	var verdict domain.EvaluationVerdict

	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("deep search canceled: %w", err)
		}

		switch state {
		case stateRetrieve:
			candidates, err := c.retriever.Retrieve(ctx, query, opts)
			if err != nil {
				if run.Iterations == 0 {
					return fmt.Errorf("deep search: first retrieval pass: %w", err)
				}
				// Later passes degrade: answer from what earlier passes found.
				c.log.WarnContext(ctx, "retrieval pass failed, stopping with collected evidence",
					"iteration", run.Iterations+1, "error", err)
				state = stateDone
				continue
			}

			ranked, err := c.reranker.DeepRerank(ctx, query, candidates, c.maxResults)
			if err != nil {
				return fmt.Errorf("deep search: rerank pass: %w", err)
			}
			run.MergeDocuments(ranked)
			run.Iterations++
			state = stateEvaluate

		case stateEvaluate:
			v, err := c.evaluate(ctx, run, query)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				c.log.WarnContext(ctx, "evidence evaluation failed, stopping with collected evidence",
					"iteration", run.Iterations, "error", err)
				state = stateDone
				continue
			}
			verdict = v

			switch {
			case verdict.Sufficient:
				state = stateDone
			case run.Iterations >= c.maxIterations:
				c.log.InfoContext(ctx, "retrieval pass budget reached",
					"iterations", run.Iterations, "gaps", len(verdict.Gaps))
				state = stateDone
			case verdict.RefinedQuery == nil || verdict.RefinedQuery.IsZero():
				c.log.WarnContext(ctx, "insufficient verdict without refined query, forcing stop",
					"iteration", run.Iterations)
				state = stateDone
			default:
				state = stateRefine
			}

		case stateRefine:
			query = normalizeRefined(*verdict.RefinedQuery)
			run.PushQuery(query)
			state = stateRetrieve
		}
	}

	return nil
}

func (c *deepSearchController) evaluate(ctx context.Context, run *domain.PipelineRun, query domain.RewrittenQuery) (domain.EvaluationVerdict, error) {
	system, prompt := buildVerdictPrompt(run.Question, run.History, query, run.Documents)
	raw, err := c.gateway.Generate(ctx, domain.GenerateInput{
		Task:      domain.TaskDeepPlanner,
		System:    system,
		Prompt:    prompt,
		JSON:      true,
		Reasoning: true,
	})
	if err != nil {
		return domain.EvaluationVerdict{}, err
	}

	var verdict domain.EvaluationVerdict
	if err := decodeStructured(raw, &verdict); err != nil {
		return domain.EvaluationVerdict{}, err
	}
	return verdict, nil
}

// normalizeRefined fills a half-empty refined query from its other leg so a
// single usable form is enough to continue.
func normalizeRefined(q domain.RewrittenQuery) domain.RewrittenQuery {
	if q.SemanticQuery == "" {
		q.SemanticQuery = q.KeywordQuery
	}
	if q.KeywordQuery == "" {
		q.KeywordQuery = q.SemanticQuery
	}
	return q
}
