package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/usecase"
)

// answerFixture wires the entry point with fakes that fail the test when an
// unexpected stage runs. Tests override the stages they exercise.
type answerFixture struct {
	router     routerFunc
	rewriter   rewriterFunc
	planner    plannerFunc
	retriever  retrieverFunc
	reranker   usecase.Reranker
	deepSearch deepSearchFunc
	synth      synthesizerFunc
	direct     directFunc
	records    *fakeRecordStore
	opts       usecase.PipelineOptions
}

func newAnswerFixture(t *testing.T) *answerFixture {
	t.Helper()
	return &answerFixture{
		router: func(context.Context, string, string) domain.Intent {
			return domain.IntentRetrieve
		},
		rewriter: func(context.Context, string, string) (domain.RewrittenQuery, error) {
			return domain.RewrittenQuery{SemanticQuery: "semantic", KeywordQuery: "keyword"}, nil
		},
		planner: func(context.Context, string, []domain.DatabaseDescriptor) domain.DatabaseFilterPlan {
			return domain.DatabaseFilterPlan{}
		},
		retriever: func(context.Context, domain.RewrittenQuery, domain.RetrievalOptions) ([]domain.CandidateDocument, error) {
			return []domain.CandidateDocument{candidate("c-1", "evidence", 0.9)}, nil
		},
		reranker: passReranker{},
		deepSearch: func(context.Context, *domain.PipelineRun, domain.RetrievalOptions) error {
			t.Fatal("deep search must not run")
			return nil
		},
		synth: func(_ context.Context, run *domain.PipelineRun) (*domain.CitedAnswer, error) {
			return &domain.CitedAnswer{
				Answer:    "synthesized",
				Citations: []domain.Citation{{SourceID: run.Documents[0].Document.SourceID}},
			}, nil
		},
		direct: func(context.Context, string, string) (string, error) {
			t.Fatal("direct responder must not run")
			return "", nil
		},
		records: &fakeRecordStore{},
		opts: usecase.PipelineOptions{
			SemanticWeight:    0.7,
			KeywordWeight:     0.3,
			SearchLimit:       20,
			MaxResults:        5,
			DeepSearchEnabled: true,
		},
	}
}

func (f *answerFixture) build() usecase.AnswerUsecase {
	return usecase.NewAnswerUsecase(
		f.router, f.rewriter, f.planner, f.retriever, f.reranker,
		f.deepSearch, f.synth, f.direct, f.records, f.opts, testLogger(),
	)
}

func TestAnswerUsecase_RetrieveMode(t *testing.T) {
	f := newAnswerFixture(t)
	uc := f.build()

	out, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "what happened?",
		Mode:     domain.ModeRetrieve,
	})

	require.NoError(t, err)
	assert.Equal(t, "synthesized", out.Answer)
	assert.False(t, out.NoContext)
	assert.Equal(t, 1, out.Iterations)
	assert.Equal(t, 1, out.Documents)
	require.Len(t, out.Citations, 1)
	assert.Equal(t, "c-1", out.Citations[0].SourceID)
}

func TestAnswerUsecase_DirectModeSkipsPipeline(t *testing.T) {
	f := newAnswerFixture(t)
	f.router = func(context.Context, string, string) domain.Intent {
		t.Fatal("router must not run in direct mode")
		return domain.IntentRetrieve
	}
	f.rewriter = func(context.Context, string, string) (domain.RewrittenQuery, error) {
		t.Fatal("rewriter must not run in direct mode")
		return domain.RewrittenQuery{}, nil
	}
	f.direct = func(context.Context, string, string) (string, error) {
		return "direct answer", nil
	}
	uc := f.build()

	out, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "hello",
		Mode:     domain.ModeDirect,
	})

	require.NoError(t, err)
	assert.Equal(t, "direct answer", out.Answer)
	assert.True(t, out.NoContext)
	assert.Empty(t, out.Citations)
}

func TestAnswerUsecase_NoContextIntentDiverts(t *testing.T) {
	f := newAnswerFixture(t)
	f.router = func(context.Context, string, string) domain.Intent {
		return domain.IntentNoContext
	}
	f.rewriter = func(context.Context, string, string) (domain.RewrittenQuery, error) {
		t.Fatal("rewriter must not run after a no-context verdict")
		return domain.RewrittenQuery{}, nil
	}
	f.direct = func(context.Context, string, string) (string, error) {
		return "just chatting", nil
	}
	uc := f.build()

	out, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "thanks!",
		Mode:     domain.ModeRetrieve,
	})

	require.NoError(t, err)
	assert.True(t, out.NoContext)
	assert.Equal(t, "just chatting", out.Answer)
}

func TestAnswerUsecase_DeepSearchMode(t *testing.T) {
	f := newAnswerFixture(t)
	deepRan := false
	f.deepSearch = func(_ context.Context, run *domain.PipelineRun, opts domain.RetrievalOptions) error {
		deepRan = true
		assert.Equal(t, 20, opts.Limit)
		run.MergeDocuments([]domain.RankedDocument{
			{Document: candidate("c-9", "deep evidence", 0.8), Score: 0.8},
		})
		run.Iterations = 2
		return nil
	}
	f.retriever = func(context.Context, domain.RewrittenQuery, domain.RetrievalOptions) ([]domain.CandidateDocument, error) {
		t.Fatal("single-pass retrieval must not run in deep mode")
		return nil, nil
	}
	f.synth = func(_ context.Context, run *domain.PipelineRun) (*domain.CitedAnswer, error) {
		return &domain.CitedAnswer{Answer: "deep answer"}, nil
	}
	uc := f.build()

	out, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "dig into the outage",
		Mode:     domain.ModeDeepSearch,
	})

	require.NoError(t, err)
	assert.True(t, deepRan)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, "deep answer", out.Answer)
}

func TestAnswerUsecase_DeepSearchDisabledFallsBackToSinglePass(t *testing.T) {
	f := newAnswerFixture(t)
	f.opts.DeepSearchEnabled = false
	uc := f.build()

	out, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "dig into the outage",
		Mode:     domain.ModeDeepSearch,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, out.Iterations)
	assert.Equal(t, "synthesized", out.Answer)
}

func TestAnswerUsecase_EmptyRetrievalAnswersWithoutContext(t *testing.T) {
	f := newAnswerFixture(t)
	f.retriever = func(context.Context, domain.RewrittenQuery, domain.RetrievalOptions) ([]domain.CandidateDocument, error) {
		return nil, nil
	}
	f.direct = func(context.Context, string, string) (string, error) {
		return "nothing found, answering generally", nil
	}
	f.synth = func(context.Context, *domain.PipelineRun) (*domain.CitedAnswer, error) {
		t.Fatal("synthesizer must not run without evidence")
		return nil, nil
	}
	uc := f.build()

	out, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "anything about llamas?",
		Mode:     domain.ModeRetrieve,
	})

	require.NoError(t, err)
	assert.True(t, out.NoContext)
	assert.Equal(t, "nothing found, answering generally", out.Answer)
}

func TestAnswerUsecase_RequestDatabasesBypassListing(t *testing.T) {
	f := newAnswerFixture(t)
	f.records.listErr = errBoom // listing would fail; supplied databases must be used instead
	var seen []domain.DatabaseDescriptor
	f.planner = func(_ context.Context, _ string, candidates []domain.DatabaseDescriptor) domain.DatabaseFilterPlan {
		seen = candidates
		return domain.DatabaseFilterPlan{DatabaseIDs: []string{"db-1"}}
	}
	var gotPlan domain.DatabaseFilterPlan
	f.retriever = func(_ context.Context, _ domain.RewrittenQuery, opts domain.RetrievalOptions) ([]domain.CandidateDocument, error) {
		gotPlan = opts.Plan
		return []domain.CandidateDocument{candidate("c-1", "evidence", 0.9)}, nil
	}
	uc := f.build()

	_, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question:  "status of db-1 items",
		Mode:      domain.ModeRetrieve,
		Databases: []domain.DatabaseDescriptor{{ID: "db-1", Name: "Tasks"}},
	})

	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "db-1", seen[0].ID)
	assert.Equal(t, []string{"db-1"}, gotPlan.DatabaseIDs)
}

func TestAnswerUsecase_ListingFailureSearchesUnscoped(t *testing.T) {
	f := newAnswerFixture(t)
	f.records.listErr = errBoom
	f.planner = func(_ context.Context, _ string, candidates []domain.DatabaseDescriptor) domain.DatabaseFilterPlan {
		t.Fatal("planner must not run without candidates")
		return domain.DatabaseFilterPlan{}
	}
	var gotPlan domain.DatabaseFilterPlan
	f.retriever = func(_ context.Context, _ domain.RewrittenQuery, opts domain.RetrievalOptions) ([]domain.CandidateDocument, error) {
		gotPlan = opts.Plan
		return []domain.CandidateDocument{candidate("c-1", "evidence", 0.9)}, nil
	}
	uc := f.build()

	_, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "anything",
		Mode:     domain.ModeRetrieve,
	})

	require.NoError(t, err)
	assert.True(t, gotPlan.IsEmpty())
}

func TestAnswerUsecase_InputValidation(t *testing.T) {
	uc := newAnswerFixture(t).build()

	_, err := uc.Execute(context.Background(), usecase.AnswerInput{Question: "  ", Mode: domain.ModeRetrieve})
	assert.Error(t, err)

	_, err = uc.Execute(context.Background(), usecase.AnswerInput{Question: "hi", Mode: "turbo"})
	assert.Error(t, err)
}

func TestAnswerUsecase_RewriteFailureSurfaces(t *testing.T) {
	f := newAnswerFixture(t)
	f.rewriter = func(context.Context, string, string) (domain.RewrittenQuery, error) {
		return domain.RewrittenQuery{}, domain.ErrProviderDisabled
	}
	uc := f.build()

	_, err := uc.Execute(context.Background(), usecase.AnswerInput{
		Question: "what happened?",
		Mode:     domain.ModeRetrieve,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
