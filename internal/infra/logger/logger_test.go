package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"copilot-orchestrator/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestTraceContextHandler_StampsBusinessContext(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(logger.NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := logger.WithJobID(context.Background(), "job-1")
	ctx = logger.WithDocumentID(ctx, "doc-9")
	log.InfoContext(ctx, "processing")

	line := decodeLine(t, &buf)
	assert.Equal(t, "job-1", line["copilot.job.id"])
	assert.Equal(t, "doc-9", line["copilot.document.id"])
}

func TestTraceContextHandler_PlainContextLeavesRecordAlone(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(logger.NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

	log.InfoContext(context.Background(), "processing")

	line := decodeLine(t, &buf)
	assert.NotContains(t, line, "copilot.job.id")
	assert.NotContains(t, line, "copilot.document.id")
	assert.NotContains(t, line, "trace_id")
}

func TestTraceContextHandler_StampsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(logger.NewTraceContextHandler(slog.NewJSONHandler(&buf, nil)))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
	})
	log.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "handling request")

	line := decodeLine(t, &buf)
	assert.Equal(t, sc.TraceID().String(), line["trace_id"])
	assert.Equal(t, sc.SpanID().String(), line["span_id"])
}

func TestFromContext_EnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	enriched := logger.FromContext(logger.WithJobID(context.Background(), "job-7"), base)
	enriched.Info("job claimed")

	line := decodeLine(t, &buf)
	assert.Equal(t, "job-7", line["copilot.job.id"])
}

func TestFromContext_NoTagsReturnsBase(t *testing.T) {
	base := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	assert.Same(t, base, logger.FromContext(context.Background(), base))
}
