// Package llm holds the provider clients and the task gateway that routes
// pipeline stages onto them.
package llm

import "context"

// CompletionRequest is the provider-neutral form of one model call. A nil
// Temperature means the provider must not set one (reasoning mode).
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32
	// JSONOutput asks the provider for structured-output mode.
	JSONOutput bool
	// Reasoning marks calls that should keep the model's thinking enabled.
	Reasoning bool
}

// Client is one vendor's completion surface.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
