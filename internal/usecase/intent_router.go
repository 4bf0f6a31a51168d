package usecase

import (
	"context"
	"log/slog"
	"strings"

	"copilot-orchestrator/internal/domain"
)

// IntentRouter decides whether a question needs workspace retrieval at all.
//
// The routing is fail-open: only an explicit no-context sentinel from the
// model skips retrieval. Any other output, and any call failure, routes to
// retrieve, since looking up context unnecessarily is cheaper than answering
// without context that was needed.
type IntentRouter interface {
	Route(ctx context.Context, question, history string) domain.Intent
}

type intentRouter struct {
	gateway domain.GenerationGateway
	log     *slog.Logger
}

func NewIntentRouter(gateway domain.GenerationGateway, log *slog.Logger) IntentRouter {
	return &intentRouter{gateway: gateway, log: log}
}

func (r *intentRouter) Route(ctx context.Context, question, history string) domain.Intent {
	system, prompt := buildIntentPrompt(question, history)
	raw, err := r.gateway.Generate(ctx, domain.GenerateInput{
		Task:   domain.TaskIntentRecognition,
		System: system,
		Prompt: prompt,
	})
	if err != nil {
		r.log.WarnContext(ctx, "intent routing failed, defaulting to retrieve", "error", err)
		return domain.IntentRetrieve
	}

	if isNoContextSentinel(raw) {
		return domain.IntentNoContext
	}
	return domain.IntentRetrieve
}

// isNoContextSentinel matches the sentinel on the trimmed first line,
// case-insensitive. Trailing lines are ignored so a model that appends an
// explanation still routes correctly.
func isNoContextSentinel(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	firstLine := trimmed
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	return strings.EqualFold(strings.TrimSpace(firstLine), noContextSentinel)
}
