package domain

import "context"

// GenerateInput describes one model call at the task level. The gateway
// resolves the task through the model catalog, so callers never name models
// or providers directly.
type GenerateInput struct {
	Task      Task
	System    string
	Prompt    string
	MaxTokens int
	// JSON requests structured output mode from the provider.
	JSON bool
	// Reasoning resolves the task's reasoning variant (temperature omitted).
	Reasoning bool
}

// GenerationGateway executes task-routed model calls. Implementations own
// dispatch, rate limiting, retries, and the per-call timeout; callers own
// parsing and validation of the returned text.
type GenerationGateway interface {
	Generate(ctx context.Context, in GenerateInput) (string, error)
}

// VectorEncoder turns texts into embedding vectors, one per input, index
// aligned.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
