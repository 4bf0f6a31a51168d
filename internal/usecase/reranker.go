package usecase

import (
	"context"
	"log/slog"
	"sort"

	"copilot-orchestrator/internal/domain"
)

// Reranker orders retrieval candidates by answer relevance through a model
// call. Scores are a relative signal only; the contract holds regardless of
// what the model returns:
//
//   - every surviving entry indexes a real candidate, uniquely;
//   - at most maxResults survive, best first;
//   - a failed or unusable model response falls back to the original
//     retrieval order, truncated. Reranking degrades, it never fails a turn.
type Reranker interface {
	Rerank(ctx context.Context, query domain.RewrittenQuery, candidates []domain.CandidateDocument, maxResults int) ([]domain.RankedDocument, error)
	// DeepRerank is the deep-search variant, running on the reasoning model.
	DeepRerank(ctx context.Context, query domain.RewrittenQuery, candidates []domain.CandidateDocument, maxResults int) ([]domain.RankedDocument, error)
}

type reranker struct {
	gateway        domain.GenerationGateway
	maxCandidates  int
	semanticWeight float64
	keywordWeight  float64
	log            *slog.Logger
}

func NewReranker(gateway domain.GenerationGateway, maxCandidates int, semanticWeight, keywordWeight float64, log *slog.Logger) Reranker {
	return &reranker{
		gateway:        gateway,
		maxCandidates:  maxCandidates,
		semanticWeight: semanticWeight,
		keywordWeight:  keywordWeight,
		log:            log,
	}
}

func (r *reranker) Rerank(ctx context.Context, query domain.RewrittenQuery, candidates []domain.CandidateDocument, maxResults int) ([]domain.RankedDocument, error) {
	return r.rerank(ctx, query, candidates, maxResults, false)
}

func (r *reranker) DeepRerank(ctx context.Context, query domain.RewrittenQuery, candidates []domain.CandidateDocument, maxResults int) ([]domain.RankedDocument, error) {
	return r.rerank(ctx, query, candidates, maxResults, true)
}

type rankingPayload struct {
	Rankings []domain.RankingEntry `json:"rankings"`
}

func (r *reranker) rerank(ctx context.Context, query domain.RewrittenQuery, candidates []domain.CandidateDocument, maxResults int, deep bool) ([]domain.RankedDocument, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = len(candidates)
	}
	if r.maxCandidates > 0 && len(candidates) > r.maxCandidates {
		candidates = candidates[:r.maxCandidates]
	}

	task := domain.TaskRerank
	if deep {
		task = domain.TaskDeepRerank
	}

	system, prompt := buildRerankPrompt(query, candidates, r.semanticWeight, r.keywordWeight)
	raw, err := r.gateway.Generate(ctx, domain.GenerateInput{
		Task:      task,
		System:    system,
		Prompt:    prompt,
		JSON:      true,
		Reasoning: deep,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		r.log.WarnContext(ctx, "rerank call failed, keeping retrieval order", "task", task, "error", err)
		return retrievalOrder(candidates, maxResults), nil
	}

	var payload rankingPayload
	if err := decodeStructured(raw, &payload); err != nil {
		r.log.WarnContext(ctx, "rerank output unparsable, keeping retrieval order", "task", task, "error", err)
		return retrievalOrder(candidates, maxResults), nil
	}

	entries := validRankings(payload.Rankings, len(candidates), maxResults)
	if len(entries) == 0 {
		r.log.WarnContext(ctx, "rerank output had no usable entries, keeping retrieval order",
			"task", task, "raw_entries", len(payload.Rankings))
		return retrievalOrder(candidates, maxResults), nil
	}

	ranked := make([]domain.RankedDocument, 0, len(entries))
	for _, e := range entries {
		ranked = append(ranked, domain.RankedDocument{
			Document: candidates[e.Index],
			Score:    e.Score,
		})
	}
	return ranked, nil
}

// validRankings enforces the ranking contract on raw model output: drop
// out-of-range indices, drop repeated indices (first mention wins), order by
// score descending, cut to maxResults.
func validRankings(entries []domain.RankingEntry, candidateCount, maxResults int) []domain.RankingEntry {
	seen := make(map[int]bool, len(entries))
	valid := make([]domain.RankingEntry, 0, len(entries))
	for _, e := range entries {
		if e.Index < 0 || e.Index >= candidateCount {
			continue
		}
		if seen[e.Index] {
			continue
		}
		seen[e.Index] = true
		valid = append(valid, e)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Score > valid[j].Score
	})
	if len(valid) > maxResults {
		valid = valid[:maxResults]
	}
	return valid
}

func retrievalOrder(candidates []domain.CandidateDocument, maxResults int) []domain.RankedDocument {
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	ranked := make([]domain.RankedDocument, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, domain.RankedDocument{Document: c, Score: c.Score})
	}
	return ranked
}
