package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"copilot-orchestrator/internal/domain"
)

// maxEnrichDocumentRunes caps how much of the source document is shown to
// the enrichment model. Chunks near the start carry the document's framing;
// the cap keeps enrichment affordable for very long documents.
const maxEnrichDocumentRunes = 8000

// ChunkEnricher writes a short contextual preamble for a chunk, situating it
// within its source document. The preamble is stored next to the chunk and
// prepended at embedding time. Runs during ingestion only, never in the
// query path; callers treat failures as skippable.
type ChunkEnricher interface {
	Enrich(ctx context.Context, doc domain.WorkspaceDocument, chunk domain.Chunk) (string, error)
}

type chunkEnricher struct {
	gateway   domain.GenerationGateway
	maxTokens int
	log       *slog.Logger
}

func NewChunkEnricher(gateway domain.GenerationGateway, maxTokens int, log *slog.Logger) ChunkEnricher {
	return &chunkEnricher{gateway: gateway, maxTokens: maxTokens, log: log}
}

func (e *chunkEnricher) Enrich(ctx context.Context, doc domain.WorkspaceDocument, chunk domain.Chunk) (string, error) {
	system, prompt := buildEnrichPrompt(doc.Title, capRunes(doc.Content, maxEnrichDocumentRunes), chunk.Content)
	raw, err := e.gateway.Generate(ctx, domain.GenerateInput{
		Task:      domain.TaskContextEnhancer,
		System:    system,
		Prompt:    prompt,
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("enrich chunk %d: %w", chunk.Ordinal, err)
	}

	enrichment := strings.TrimSpace(raw)
	if enrichment == "" {
		return "", fmt.Errorf("enrich chunk %d: %w: empty enrichment", chunk.Ordinal, domain.ErrMalformedOutput)
	}
	return enrichment, nil
}

func capRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
