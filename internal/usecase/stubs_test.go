package usecase_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Generate(ctx context.Context, in domain.GenerateInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

// onTask registers an expectation on Generate for one pipeline task,
// whatever the prompt text.
func onTask(m *mockGateway, task domain.Task) *mock.Call {
	return m.On("Generate", mock.Anything, mock.MatchedBy(func(in domain.GenerateInput) bool {
		return in.Task == task
	}))
}

type retrieverFunc func(ctx context.Context, query domain.RewrittenQuery, opts domain.RetrievalOptions) ([]domain.CandidateDocument, error)

func (f retrieverFunc) Retrieve(ctx context.Context, query domain.RewrittenQuery, opts domain.RetrievalOptions) ([]domain.CandidateDocument, error) {
	return f(ctx, query, opts)
}

// passReranker keeps retrieval order, truncated, so deep-search tests can
// focus on the loop itself.
type passReranker struct {
	err error
}

func (r passReranker) Rerank(ctx context.Context, query domain.RewrittenQuery, candidates []domain.CandidateDocument, maxResults int) ([]domain.RankedDocument, error) {
	return r.DeepRerank(ctx, query, candidates, maxResults)
}

func (r passReranker) DeepRerank(_ context.Context, _ domain.RewrittenQuery, candidates []domain.CandidateDocument, maxResults int) ([]domain.RankedDocument, error) {
	if r.err != nil {
		return nil, r.err
	}
	if maxResults > 0 && len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	ranked := make([]domain.RankedDocument, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, domain.RankedDocument{Document: c, Score: c.Score})
	}
	return ranked, nil
}

type routerFunc func(ctx context.Context, question, history string) domain.Intent

func (f routerFunc) Route(ctx context.Context, question, history string) domain.Intent {
	return f(ctx, question, history)
}

type rewriterFunc func(ctx context.Context, question, history string) (domain.RewrittenQuery, error)

func (f rewriterFunc) Rewrite(ctx context.Context, question, history string) (domain.RewrittenQuery, error) {
	return f(ctx, question, history)
}

type plannerFunc func(ctx context.Context, question string, candidates []domain.DatabaseDescriptor) domain.DatabaseFilterPlan

func (f plannerFunc) Plan(ctx context.Context, question string, candidates []domain.DatabaseDescriptor) domain.DatabaseFilterPlan {
	return f(ctx, question, candidates)
}

type deepSearchFunc func(ctx context.Context, run *domain.PipelineRun, opts domain.RetrievalOptions) error

func (f deepSearchFunc) Run(ctx context.Context, run *domain.PipelineRun, opts domain.RetrievalOptions) error {
	return f(ctx, run, opts)
}

type synthesizerFunc func(ctx context.Context, run *domain.PipelineRun) (*domain.CitedAnswer, error)

func (f synthesizerFunc) Synthesize(ctx context.Context, run *domain.PipelineRun) (*domain.CitedAnswer, error) {
	return f(ctx, run)
}

type directFunc func(ctx context.Context, question, history string) (string, error)

func (f directFunc) Respond(ctx context.Context, question, history string) (string, error) {
	return f(ctx, question, history)
}

type fakeRecordStore struct {
	databases []domain.DatabaseDescriptor
	listErr   error
}

func (s *fakeRecordStore) ListDatabases(context.Context) ([]domain.DatabaseDescriptor, error) {
	return s.databases, s.listErr
}

func (s *fakeRecordStore) SearchRecords(context.Context, string, domain.DatabaseFilterPlan, int) ([]domain.WorkspaceRecord, error) {
	return nil, nil
}

type enricherFunc func(ctx context.Context, doc domain.WorkspaceDocument, chunk domain.Chunk) (string, error)

func (f enricherFunc) Enrich(ctx context.Context, doc domain.WorkspaceDocument, chunk domain.Chunk) (string, error) {
	return f(ctx, doc, chunk)
}

type encoderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f encoderFunc) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

func (f encoderFunc) Version() string { return "test-embedder" }

func candidate(id, content string, score float64) domain.CandidateDocument {
	return domain.CandidateDocument{
		SourceType: domain.SourceChunk,
		SourceID:   id,
		Title:      "doc " + id,
		Content:    content,
		Score:      score,
	}
}

var _ usecase.Reranker = passReranker{}
var _ domain.GenerationGateway = (*mockGateway)(nil)
