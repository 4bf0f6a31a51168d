package domain

import "github.com/google/uuid"

// AnswerMode selects the pipeline depth for one question.
type AnswerMode string

const (
	// ModeDirect answers from the model alone, no retrieval.
	ModeDirect AnswerMode = "direct"
	// ModeRetrieve runs a single retrieve+rerank pass.
	ModeRetrieve AnswerMode = "retrieve"
	// ModeDeepSearch iterates retrieval under the planner's control.
	ModeDeepSearch AnswerMode = "deep_search"
)

// ParseAnswerMode validates a request-supplied mode string.
func ParseAnswerMode(s string) (AnswerMode, bool) {
	switch AnswerMode(s) {
	case ModeDirect, ModeRetrieve, ModeDeepSearch:
		return AnswerMode(s), true
	default:
		return "", false
	}
}

// PipelineRun accumulates the state of one answer pipeline execution as it
// moves through the stages. It is owned by a single goroutine; stages mutate
// it in sequence.
type PipelineRun struct {
	ID       uuid.UUID
	Mode     AnswerMode
	Question string
	History  string

	// Queries holds every rewritten query issued so far; the last entry is
	// the active one.
	Queries []RewrittenQuery
	// Documents is the deduplicated, score-ordered evidence set.
	Documents []RankedDocument
	// Iterations counts retrieval passes (deep search bounds this).
	Iterations int

	Answer *CitedAnswer
}

// NewPipelineRun starts a run for one question.
func NewPipelineRun(mode AnswerMode, question, history string) *PipelineRun {
	return &PipelineRun{
		ID:       uuid.New(),
		Mode:     mode,
		Question: question,
		History:  history,
	}
}

// ActiveQuery returns the most recent rewritten query.
func (r *PipelineRun) ActiveQuery() (RewrittenQuery, bool) {
	if len(r.Queries) == 0 {
		return RewrittenQuery{}, false
	}
	return r.Queries[len(r.Queries)-1], true
}

// PushQuery records a new active query.
func (r *PipelineRun) PushQuery(q RewrittenQuery) {
	r.Queries = append(r.Queries, q)
}

// MergeDocuments folds a retrieval pass into the evidence set. Candidates are
// deduplicated by source ID; on a repeat hit the better score wins. The set
// stays ordered by score descending.
func (r *PipelineRun) MergeDocuments(batch []RankedDocument) {
	index := make(map[string]int, len(r.Documents))
	for i, d := range r.Documents {
		index[d.Document.SourceID] = i
	}

	for _, d := range batch {
		if i, ok := index[d.Document.SourceID]; ok {
			if d.Score > r.Documents[i].Score {
				r.Documents[i].Score = d.Score
			}
			continue
		}
		index[d.Document.SourceID] = len(r.Documents)
		r.Documents = append(r.Documents, d)
	}

	sortRankedByScore(r.Documents)
}

// SourceIDs returns the citable identifiers of the evidence set, in order.
func (r *PipelineRun) SourceIDs() []string {
	ids := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		ids = append(ids, d.Document.SourceID)
	}
	return ids
}

func sortRankedByScore(docs []RankedDocument) {
	// Insertion sort keeps the merge stable for equal scores; evidence sets
	// are small (tens of entries).
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && docs[j].Score > docs[j-1].Score; j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
}
