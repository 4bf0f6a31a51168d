package domain

import "fmt"

// Task identifies a pipeline stage that needs a model call. Every task is
// bound to exactly one provider+model pair in the model catalog.
type Task string

const (
	TaskQueryRewrite      Task = "query_rewrite"
	TaskIntentRecognition Task = "intent_recognition"
	TaskDatabaseFilter    Task = "database_filter"
	TaskRerank            Task = "rerank"
	TaskDeepRerank        Task = "deep_rerank"
	TaskDeepPlanner       Task = "deep_planner"
	TaskContextEnhancer   Task = "context_enhancer"
	TaskResponse          Task = "response"
	TaskNoContext         Task = "no_context"
	TaskEmbedding         Task = "embedding"
)

// Tasks lists every task the pipeline can issue. Used by config validation
// to ensure the catalog covers the full set.
func Tasks() []Task {
	return []Task{
		TaskQueryRewrite,
		TaskIntentRecognition,
		TaskDatabaseFilter,
		TaskRerank,
		TaskDeepRerank,
		TaskDeepPlanner,
		TaskContextEnhancer,
		TaskResponse,
		TaskNoContext,
		TaskEmbedding,
	}
}

// Provider is the closed set of model vendors the gateway can dispatch to.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGoogle Provider = "google"
)

// ParseProvider maps a configuration string onto the provider enum.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGoogle:
		return ProviderGoogle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}
