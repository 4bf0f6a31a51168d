package logger

import (
	"context"
	"log/slog"
)

type contextKey string

// Business context keys, named after OTel semantic-convention style.
// Background jobs run outside any request span, so the worker tags its job
// context with these and the stdout handler stamps them onto every record
// logged below it.
const (
	jobIDKey      contextKey = "copilot.job.id"
	documentIDKey contextKey = "copilot.document.id"
)

// WithJobID tags the context with the ingestion job ID.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithDocumentID tags the context with the workspace document ID.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, documentIDKey, documentID)
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range []contextKey{jobIDKey, documentIDKey} {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, slog.Any(string(key), v))
		}
	}
	return attrs
}

// FromContext returns the base logger enriched with whatever business
// context the Go context carries. Useful where log calls do not take a
// context themselves.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return base
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return base.With(args...)
}
