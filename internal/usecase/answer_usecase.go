package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"copilot-orchestrator/internal/domain"
)

// AnswerInput carries one question through the pipeline entry point.
type AnswerInput struct {
	Question string
	History  string
	Mode     domain.AnswerMode
	// Databases optionally names the structured databases the filter planner
	// may scope to. Empty means "use everything the record store lists".
	Databases []domain.DatabaseDescriptor
}

// AnswerOutput is the terminal result of one turn.
type AnswerOutput struct {
	RunID     uuid.UUID
	Mode      domain.AnswerMode
	Answer    string
	Citations []domain.Citation
	// NoContext marks answers produced without retrieval (direct mode, the
	// router's no-context verdict, or an empty retrieval result).
	NoContext  bool
	Iterations int
	Documents  int
}

// AnswerUsecase is the single operation external callers invoke; every
// pipeline stage is internal to it.
type AnswerUsecase interface {
	Execute(ctx context.Context, input AnswerInput) (*AnswerOutput, error)
}

// PipelineOptions bundles the tuning knobs the entry point threads into
// retrieval and ranking.
type PipelineOptions struct {
	SemanticWeight    float64
	KeywordWeight     float64
	SearchLimit       int
	RecordLimit       int
	RRFK              float64
	MaxResults        int
	DeepSearchEnabled bool
}

type answerUsecase struct {
	router      IntentRouter
	rewriter    QueryRewriter
	planner     FilterPlanner
	retriever   domain.Retriever
	reranker    Reranker
	deepSearch  DeepSearchController
	synthesizer Synthesizer
	direct      DirectResponder
	records     domain.RecordStore
	opts        PipelineOptions
	log         *slog.Logger
}

func NewAnswerUsecase(
	router IntentRouter,
	rewriter QueryRewriter,
	planner FilterPlanner,
	retriever domain.Retriever,
	reranker Reranker,
	deepSearch DeepSearchController,
	synthesizer Synthesizer,
	direct DirectResponder,
	records domain.RecordStore,
	opts PipelineOptions,
	log *slog.Logger,
) AnswerUsecase {
	return &answerUsecase{
		router:      router,
		rewriter:    rewriter,
		planner:     planner,
		retriever:   retriever,
		reranker:    reranker,
		deepSearch:  deepSearch,
		synthesizer: synthesizer,
		direct:      direct,
		records:     records,
		opts:        opts,
		log:         log,
	}
}

func (u *answerUsecase) Execute(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if _, ok := domain.ParseAnswerMode(string(input.Mode)); !ok {
		return nil, fmt.Errorf("unknown answer mode %q", input.Mode)
	}

	run := domain.NewPipelineRun(input.Mode, question, input.History)
	log := u.log.With("run_id", run.ID.String(), "mode", run.Mode)
	log.InfoContext(ctx, "answer turn started")

	if run.Mode == domain.ModeDirect {
		return u.answerDirect(ctx, run, log)
	}

	if intent := u.router.Route(ctx, question, input.History); intent == domain.IntentNoContext {
		log.InfoContext(ctx, "routed to no-context answer")
		return u.answerDirect(ctx, run, log)
	}

	query, err := u.rewriter.Rewrite(ctx, question, input.History)
	if err != nil {
		return nil, err
	}
	run.PushQuery(query)

	plan := u.planFilters(ctx, run, input.Databases, log)
	retrievalOpts := domain.RetrievalOptions{
		SemanticWeight: u.opts.SemanticWeight,
		KeywordWeight:  u.opts.KeywordWeight,
		Limit:          u.opts.SearchLimit,
		RecordLimit:    u.opts.RecordLimit,
		RRFK:           u.opts.RRFK,
		Plan:           plan,
	}

	if run.Mode == domain.ModeDeepSearch && u.opts.DeepSearchEnabled {
		if err := u.deepSearch.Run(ctx, run, retrievalOpts); err != nil {
			return nil, err
		}
	} else {
		if run.Mode == domain.ModeDeepSearch {
			log.WarnContext(ctx, "deep search disabled, using single retrieval pass")
		}
		if err := u.retrieveOnce(ctx, run, query, retrievalOpts); err != nil {
			return nil, err
		}
	}

	if len(run.Documents) == 0 {
		log.WarnContext(ctx, "retrieval produced no evidence, answering without context")
		return u.answerDirect(ctx, run, log)
	}

	answer, err := u.synthesizer.Synthesize(ctx, run)
	if err != nil {
		return nil, err
	}
	run.Answer = answer

	log.InfoContext(ctx, "answer turn finished",
		"iterations", run.Iterations,
		"documents", len(run.Documents),
		"citations", len(answer.Citations),
	)
	return &AnswerOutput{
		RunID:      run.ID,
		Mode:       run.Mode,
		Answer:     answer.Answer,
		Citations:  answer.Citations,
		Iterations: run.Iterations,
		Documents:  len(run.Documents),
	}, nil
}

func (u *answerUsecase) answerDirect(ctx context.Context, run *domain.PipelineRun, log *slog.Logger) (*AnswerOutput, error) {
	text, err := u.direct.Respond(ctx, run.Question, run.History)
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "answer turn finished", "no_context", true)
	return &AnswerOutput{
		RunID:      run.ID,
		Mode:       run.Mode,
		Answer:     text,
		NoContext:  true,
		Iterations: run.Iterations,
		Documents:  len(run.Documents),
	}, nil
}

// planFilters resolves the candidate database set (request-supplied, or the
// record store's listing) and asks the planner to scope it. Everything here
// degrades to the unscoped plan.
func (u *answerUsecase) planFilters(ctx context.Context, run *domain.PipelineRun, databases []domain.DatabaseDescriptor, log *slog.Logger) domain.DatabaseFilterPlan {
	if len(databases) == 0 {
		listed, err := u.records.ListDatabases(ctx)
		if err != nil {
			log.WarnContext(ctx, "listing databases failed, searching unscoped", "error", err)
			return domain.DatabaseFilterPlan{}
		}
		databases = listed
	}
	return u.planner.Plan(ctx, run.Question, databases)
}

func (u *answerUsecase) retrieveOnce(ctx context.Context, run *domain.PipelineRun, query domain.RewrittenQuery, opts domain.RetrievalOptions) error {
	candidates, err := u.retriever.Retrieve(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("retrieve evidence: %w", err)
	}

	ranked, err := u.reranker.Rerank(ctx, query, candidates, u.opts.MaxResults)
	if err != nil {
		return fmt.Errorf("rerank evidence: %w", err)
	}

	run.MergeDocuments(ranked)
	run.Iterations = 1
	return nil
}
