package domain

import "strings"

// RewrittenQuery is the structured retrieval form of a user question. The
// semantic query feeds the vector leg, the keyword query feeds the full-text
// and record legs.
type RewrittenQuery struct {
	SemanticQuery string `json:"semantic_query"`
	KeywordQuery  string `json:"keyword_query"`
}

// IsZero reports whether both legs are empty after trimming.
func (q RewrittenQuery) IsZero() bool {
	return strings.TrimSpace(q.SemanticQuery) == "" && strings.TrimSpace(q.KeywordQuery) == ""
}

// SourceType distinguishes where a retrieved candidate came from.
type SourceType string

const (
	// SourceChunk is a chunk of a prose workspace document.
	SourceChunk SourceType = "chunk"
	// SourceRecord is a row of a structured workspace database.
	SourceRecord SourceType = "record"
)

// CandidateDocument is one retrieval hit handed to the reranker and, if it
// survives, to the synthesizer. SourceID is the citable identifier.
type CandidateDocument struct {
	SourceType SourceType
	SourceID   string
	Title      string
	Content    string
	Score      float64
}

// RankedDocument pairs a candidate with its post-rerank score.
type RankedDocument struct {
	Document CandidateDocument
	Score    float64
}

// RankingEntry is one element of the reranker's raw model output. Index
// refers to the position in the candidate slice the model was shown.
type RankingEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Intent is the router's verdict on whether a question needs retrieval.
type Intent string

const (
	IntentRetrieve  Intent = "retrieve"
	IntentNoContext Intent = "no_context"
)
