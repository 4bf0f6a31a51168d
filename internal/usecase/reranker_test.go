package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"copilot-orchestrator/internal/domain"
	"copilot-orchestrator/internal/usecase"
)

func rerankQuery() domain.RewrittenQuery {
	return domain.RewrittenQuery{SemanticQuery: "deployment rollback steps", KeywordQuery: "deployment rollback"}
}

func rerankCandidates() []domain.CandidateDocument {
	return []domain.CandidateDocument{
		candidate("c-0", "unrelated meeting notes", 0.9),
		candidate("c-1", "rollback runbook part one", 0.8),
		candidate("c-2", "rollback runbook part two", 0.7),
	}
}

func newTestReranker(gw domain.GenerationGateway) usecase.Reranker {
	return usecase.NewReranker(gw, 20, 0.7, 0.3, testLogger())
}

func TestReranker_OrdersByModelScore(t *testing.T) {
	gw := new(mockGateway)
	onTask(gw, domain.TaskRerank).Return(`{"rankings": [
		{"index": 2, "score": 0.95},
		{"index": 1, "score": 0.90},
		{"index": 0, "score": 0.10}
	]}`, nil)

	ranked, err := newTestReranker(gw).Rerank(context.Background(), rerankQuery(), rerankCandidates(), 2)

	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c-2", ranked[0].Document.SourceID)
	assert.Equal(t, "c-1", ranked[1].Document.SourceID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestReranker_DropsInvalidAndDuplicateIndices(t *testing.T) {
	gw := new(mockGateway)
	onTask(gw, domain.TaskRerank).Return(`{"rankings": [
		{"index": 7, "score": 0.99},
		{"index": -1, "score": 0.98},
		{"index": 1, "score": 0.90},
		{"index": 1, "score": 0.40},
		{"index": 0, "score": 0.50}
	]}`, nil)

	ranked, err := newTestReranker(gw).Rerank(context.Background(), rerankQuery(), rerankCandidates(), 5)

	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c-1", ranked[0].Document.SourceID)
	assert.Equal(t, 0.90, ranked[0].Score)
	assert.Equal(t, "c-0", ranked[1].Document.SourceID)
}

func TestReranker_FallsBackToRetrievalOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"gateway failure", "", errBoom},
		{"unparsable output", "candidate 2 looks best", nil},
		{"no usable entries", `{"rankings": [{"index": 9, "score": 1.0}]}`, nil},
		{"empty rankings", `{"rankings": []}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockGateway)
			onTask(gw, domain.TaskRerank).Return(tt.raw, tt.err)

			ranked, err := newTestReranker(gw).Rerank(context.Background(), rerankQuery(), rerankCandidates(), 2)

			require.NoError(t, err)
			require.Len(t, ranked, 2)
			assert.Equal(t, "c-0", ranked[0].Document.SourceID)
			assert.Equal(t, "c-1", ranked[1].Document.SourceID)
			assert.Equal(t, 0.9, ranked[0].Score)
		})
	}
}

func TestReranker_CanceledContextPropagates(t *testing.T) {
	gw := new(mockGateway)
	ctx, cancel := context.WithCancel(context.Background())
	onTask(gw, domain.TaskRerank).Run(func(mock.Arguments) {
		cancel()
	}).Return("", context.Canceled)

	_, err := newTestReranker(gw).Rerank(ctx, rerankQuery(), rerankCandidates(), 2)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestReranker_EmptyCandidates(t *testing.T) {
	gw := new(mockGateway)

	ranked, err := newTestReranker(gw).Rerank(context.Background(), rerankQuery(), nil, 5)

	require.NoError(t, err)
	assert.Empty(t, ranked)
	gw.AssertNumberOfCalls(t, "Generate", 0)
}

func TestReranker_DeepRerankUsesReasoningVariant(t *testing.T) {
	gw := new(mockGateway)
	var got domain.GenerateInput
	gw.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(domain.GenerateInput)
	}).Return(`{"rankings": [{"index": 0, "score": 1.0}]}`, nil)

	_, err := newTestReranker(gw).DeepRerank(context.Background(), rerankQuery(), rerankCandidates(), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.TaskDeepRerank, got.Task)
	assert.True(t, got.Reasoning)
	assert.True(t, got.JSON)
}

func TestReranker_TruncatesOversizedCandidateSet(t *testing.T) {
	gw := new(mockGateway)
	onTask(gw, domain.TaskRerank).Return(`{"rankings": [
		{"index": 1, "score": 0.9},
		{"index": 2, "score": 0.8}
	]}`, nil)

	// Cap of two: the third candidate is never shown, so index 2 is invalid.
	r := usecase.NewReranker(gw, 2, 0.7, 0.3, testLogger())
	ranked, err := r.Rerank(context.Background(), rerankQuery(), rerankCandidates(), 5)

	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "c-1", ranked[0].Document.SourceID)
}
