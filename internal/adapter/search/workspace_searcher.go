package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"copilot-orchestrator/internal/domain"
)

// WorkspaceSearcher is the hybrid retriever: a vector leg and a full-text
// leg over document chunks, plus a keyword leg over structured records, run
// in parallel and fused by weighted reciprocal rank.
//
// Legs degrade independently: a failed leg logs a warning and the others
// still serve. Retrieve only errors when every leg failed or the context
// died.
type WorkspaceSearcher struct {
	encoder domain.VectorEncoder
	chunks  domain.ChunkRepository
	records domain.RecordStore
	log     *slog.Logger
}

func NewWorkspaceSearcher(
	encoder domain.VectorEncoder,
	chunks domain.ChunkRepository,
	records domain.RecordStore,
	log *slog.Logger,
) *WorkspaceSearcher {
	return &WorkspaceSearcher{
		encoder: encoder,
		chunks:  chunks,
		records: records,
		log:     log,
	}
}

var _ domain.Retriever = (*WorkspaceSearcher)(nil)

func (s *WorkspaceSearcher) Retrieve(ctx context.Context, query domain.RewrittenQuery, opts domain.RetrievalOptions) ([]domain.CandidateDocument, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		semanticHits []domain.CandidateDocument
		keywordHits  []domain.CandidateDocument
		recordHits   []domain.CandidateDocument
		semanticErr  error
		keywordErr   error
		recordErr    error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := s.semanticLeg(gctx, query.SemanticQuery, limit)
		if err != nil {
			semanticErr = err
			s.log.WarnContext(gctx, "semantic leg failed", "error", err)
			return nil
		}
		semanticHits = hits
		return nil
	})

	g.Go(func() error {
		hits, err := s.chunks.KeywordSearch(gctx, query.KeywordQuery, limit)
		if err != nil {
			keywordErr = err
			s.log.WarnContext(gctx, "keyword leg failed", "error", err)
			return nil
		}
		keywordHits = chunkCandidates(hits)
		return nil
	})

	recordLimit := opts.RecordLimit
	if recordLimit <= 0 {
		recordLimit = limit
	}
	g.Go(func() error {
		if s.records == nil {
			return nil
		}
		recs, err := s.records.SearchRecords(gctx, query.KeywordQuery, opts.Plan, recordLimit)
		if err != nil {
			recordErr = err
			s.log.WarnContext(gctx, "record leg failed", "error", err)
			return nil
		}
		recordHits = recordCandidates(recs)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := len(semanticHits) + len(keywordHits) + len(recordHits)
	if total == 0 {
		legErrs := []error{semanticErr, keywordErr}
		if s.records != nil {
			legErrs = append(legErrs, recordErr)
		}
		failed := 0
		for _, err := range legErrs {
			if err != nil {
				failed++
			}
		}
		if failed == len(legErrs) {
			return nil, fmt.Errorf("all search legs failed: %w", legErrs[0])
		}
		return nil, nil
	}

	fusedOut := fuseLegs([]leg{
		{weight: opts.SemanticWeight, hits: semanticHits},
		{weight: opts.KeywordWeight, hits: keywordHits},
		{weight: opts.KeywordWeight, hits: recordHits},
	}, limit, opts.RRFK)

	s.log.DebugContext(ctx, "hybrid retrieval fused",
		"semantic_hits", len(semanticHits),
		"keyword_hits", len(keywordHits),
		"record_hits", len(recordHits),
		"fused", len(fusedOut),
	)
	return fusedOut, nil
}

func (s *WorkspaceSearcher) semanticLeg(ctx context.Context, query string, limit int) ([]domain.CandidateDocument, error) {
	embeddings, err := s.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("encode query: got %d embeddings", len(embeddings))
	}

	hits, err := s.chunks.SemanticSearch(ctx, embeddings[0], limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return chunkCandidates(hits), nil
}

func chunkCandidates(hits []domain.ChunkHit) []domain.CandidateDocument {
	out := make([]domain.CandidateDocument, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.CandidateDocument{
			SourceType: domain.SourceChunk,
			SourceID:   h.Chunk.ID.String(),
			Title:      h.DocTitle,
			Content:    h.Chunk.EmbeddingText(),
			Score:      h.Score,
		})
	}
	return out
}

func recordCandidates(recs []domain.WorkspaceRecord) []domain.CandidateDocument {
	out := make([]domain.CandidateDocument, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.CandidateDocument{
			SourceType: domain.SourceRecord,
			SourceID:   r.ID,
			Title:      r.Title,
			Content:    flattenRecord(r),
		})
	}
	return out
}

// flattenRecord renders a record as "field: value" lines so the reranker and
// synthesizer see it as prose. Fields are sorted for stable output.
func flattenRecord(r domain.WorkspaceRecord) string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(r.Title)
	for _, name := range names {
		b.WriteString("\n")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(r.Fields[name])
	}
	return b.String()
}
