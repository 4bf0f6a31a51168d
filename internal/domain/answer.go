package domain

// Citation ties one statement of the answer back to a retrieved source.
type Citation struct {
	SourceID string `json:"source_id"`
	Quote    string `json:"quote,omitempty"`
}

// CitedAnswer is the synthesizer's validated result. Every citation's
// SourceID is guaranteed to be a member of the context the model was shown.
type CitedAnswer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// EvaluationVerdict is the deep-search planner's judgement of the evidence
// collected so far. A nil RefinedQuery on an insufficient verdict forces the
// controller to stop.
type EvaluationVerdict struct {
	Sufficient   bool            `json:"sufficient"`
	Gaps         []string        `json:"gaps,omitempty"`
	RefinedQuery *RewrittenQuery `json:"refined_query,omitempty"`
}
