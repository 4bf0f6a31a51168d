package domain

import "context"

// RetrievalOptions tunes one hybrid retrieval pass.
type RetrievalOptions struct {
	// SemanticWeight and KeywordWeight scale the rank-fusion contribution of
	// the respective legs.
	SemanticWeight float64
	KeywordWeight  float64
	// Limit bounds the fused result count.
	Limit int
	// RecordLimit bounds the record leg separately; zero means Limit.
	RecordLimit int
	// RRFK is the rank-fusion dampening constant; zero means the default.
	RRFK float64
	// Plan scopes the record leg; an empty plan searches all databases.
	Plan DatabaseFilterPlan
}

// Retriever is the hybrid search collaborator: given a rewritten query it
// returns fused, score-ordered candidates from the document and record legs.
type Retriever interface {
	Retrieve(ctx context.Context, query RewrittenQuery, opts RetrievalOptions) ([]CandidateDocument, error)
}
