package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"copilot-orchestrator/internal/domain"
)

// EnrichReport summarizes one backfill pass.
type EnrichReport struct {
	Scanned  int
	Enriched int
	Failed   int
	Skipped  int
}

// EnrichBackfillUsecase repairs ingestion after enrichment failures: parked
// jobs can be requeued, and chunks that were indexed without an enrichment
// preamble can be enriched and re-embedded in place.
type EnrichBackfillUsecase interface {
	RequeueFailed(ctx context.Context, limit int) (int, error)
	EnrichMissing(ctx context.Context, batchSize int, dryRun bool) (*EnrichReport, error)
}

type enrichBackfill struct {
	docRepo   domain.DocumentRepository
	chunkRepo domain.ChunkRepository
	jobRepo   domain.JobRepository
	enricher  ChunkEnricher
	encoder   domain.VectorEncoder
	log       *slog.Logger
}

func NewEnrichBackfillUsecase(
	docRepo domain.DocumentRepository,
	chunkRepo domain.ChunkRepository,
	jobRepo domain.JobRepository,
	enricher ChunkEnricher,
	encoder domain.VectorEncoder,
	log *slog.Logger,
) EnrichBackfillUsecase {
	return &enrichBackfill{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		jobRepo:   jobRepo,
		enricher:  enricher,
		encoder:   encoder,
		log:       log,
	}
}

func (u *enrichBackfill) RequeueFailed(ctx context.Context, limit int) (int, error) {
	count, err := u.jobRepo.RequeueFailed(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("requeue failed jobs: %w", err)
	}
	u.log.InfoContext(ctx, "failed jobs requeued", "count", count)
	return count, nil
}

// EnrichMissing pages through un-enriched chunks. Each successful enrichment
// is re-embedded and written back, which removes the chunk from the next
// page. A page that makes no progress ends the pass so chunks that keep
// failing cannot spin it forever.
func (u *enrichBackfill) EnrichMissing(ctx context.Context, batchSize int, dryRun bool) (*EnrichReport, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	report := &EnrichReport{}
	docs := make(map[uuid.UUID]*domain.WorkspaceDocument)

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		chunks, err := u.chunkRepo.ListUnenriched(ctx, batchSize)
		if err != nil {
			return report, fmt.Errorf("list unenriched chunks: %w", err)
		}
		if len(chunks) == 0 {
			break
		}
		report.Scanned += len(chunks)

		if dryRun {
			// First page is enough to size the work; nothing is written.
			break
		}

		updated := 0
		for _, chunk := range chunks {
			doc, ok := docs[chunk.DocumentID]
			if !ok {
				doc, err = u.docRepo.GetByID(ctx, chunk.DocumentID)
				if err != nil {
					return report, fmt.Errorf("load document: %w", err)
				}
				docs[chunk.DocumentID] = doc
			}
			if doc == nil || doc.Deleted {
				report.Skipped++
				continue
			}

			if err := u.enrichOne(ctx, doc, chunk); err != nil {
				report.Failed++
				u.log.WarnContext(ctx, "backfill enrichment failed",
					"chunk_id", chunk.ID.String(), "error", err)
				continue
			}
			report.Enriched++
			updated++
		}

		if updated == 0 {
			break
		}
	}

	u.log.InfoContext(ctx, "enrichment backfill finished",
		"scanned", report.Scanned,
		"enriched", report.Enriched,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"dry_run", dryRun,
	)
	return report, nil
}

func (u *enrichBackfill) enrichOne(ctx context.Context, doc *domain.WorkspaceDocument, chunk domain.DocumentChunk) error {
	enrichment, err := u.enricher.Enrich(ctx, *doc, domain.Chunk{Ordinal: chunk.Ordinal, Content: chunk.Content})
	if err != nil {
		return err
	}
	chunk.Enrichment = enrichment

	embeddings, err := u.encoder.Encode(ctx, []string{chunk.EmbeddingText()})
	if err != nil {
		return fmt.Errorf("re-embed chunk: %w", err)
	}
	if len(embeddings) != 1 {
		return fmt.Errorf("re-embed chunk: got %d vectors", len(embeddings))
	}
	chunk.Embedding = pgvector.NewVector(embeddings[0])

	if err := u.chunkRepo.UpdateEnrichment(ctx, chunk); err != nil {
		return fmt.Errorf("store enrichment: %w", err)
	}
	return nil
}
