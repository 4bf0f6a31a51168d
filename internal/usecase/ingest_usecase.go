package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"copilot-orchestrator/internal/domain"
)

// DocumentInput is one document submitted for indexing.
type DocumentInput struct {
	ExternalID string
	Title      string
	Content    string
}

// SubmitResult reports what Submit did with a document.
type SubmitResult struct {
	DocumentID uuid.UUID
	JobID      uuid.UUID
	// Enqueued is false when the content hash matched the stored document
	// and no reindex was needed.
	Enqueued bool
}

// IngestUsecase owns the document indexing path: accepting documents,
// processing queued jobs, and tombstoning.
type IngestUsecase interface {
	// Submit stores the document and enqueues an indexing job. Idempotent:
	// resubmitting unchanged content enqueues nothing.
	Submit(ctx context.Context, input DocumentInput) (*SubmitResult, error)
	// ProcessJob chunks, enriches, embeds, and stores one queued document.
	ProcessJob(ctx context.Context, job *domain.IngestJob) error
	// Delete tombstones a document and drops its chunks from the index.
	Delete(ctx context.Context, externalID string) error
}

type ingestUsecase struct {
	docRepo   domain.DocumentRepository
	chunkRepo domain.ChunkRepository
	jobRepo   domain.JobRepository
	txManager domain.TransactionManager
	hasher    domain.HashPolicy
	chunker   domain.Chunker
	enricher  ChunkEnricher
	encoder   domain.VectorEncoder
	log       *slog.Logger
}

func NewIngestUsecase(
	docRepo domain.DocumentRepository,
	chunkRepo domain.ChunkRepository,
	jobRepo domain.JobRepository,
	txManager domain.TransactionManager,
	hasher domain.HashPolicy,
	chunker domain.Chunker,
	enricher ChunkEnricher,
	encoder domain.VectorEncoder,
	log *slog.Logger,
) IngestUsecase {
	return &ingestUsecase{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		jobRepo:   jobRepo,
		txManager: txManager,
		hasher:    hasher,
		chunker:   chunker,
		enricher:  enricher,
		encoder:   encoder,
		log:       log,
	}
}

func (u *ingestUsecase) Submit(ctx context.Context, input DocumentInput) (*SubmitResult, error) {
	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		return nil, fmt.Errorf("external id is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}

	sourceHash := u.hasher.Compute(input.Title, input.Content)
	result := &SubmitResult{}

	err := u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := u.docRepo.GetByExternalID(ctx, externalID)
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}

		now := time.Now()
		if doc == nil {
			doc = &domain.WorkspaceDocument{
				ID:         uuid.New(),
				ExternalID: externalID,
				CreatedAt:  now,
			}
		} else if doc.SourceHash == sourceHash && !doc.Deleted {
			result.DocumentID = doc.ID
			return nil
		}

		doc.Title = input.Title
		doc.Content = input.Content
		doc.SourceHash = sourceHash
		doc.Deleted = false
		doc.UpdatedAt = now
		if err := u.docRepo.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}

		job := &domain.IngestJob{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Status:     domain.JobPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := u.jobRepo.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue job: %w", err)
		}

		result.DocumentID = doc.ID
		result.JobID = job.ID
		result.Enqueued = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.InfoContext(ctx, "document submitted",
		"document_id", result.DocumentID.String(),
		"enqueued", result.Enqueued,
	)
	return result, nil
}

// ProcessJob runs outside a transaction for the model and embedding calls;
// only the final chunk replacement is transactional. Enrichment failures are
// logged and skipped: the chunk is indexed without its preamble rather than
// holding up the document.
func (u *ingestUsecase) ProcessJob(ctx context.Context, job *domain.IngestJob) error {
	doc, err := u.docRepo.GetByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil || doc.Deleted {
		u.log.InfoContext(ctx, "job document gone, nothing to index")
		return nil
	}

	chunks, err := u.chunker.Chunk(doc.Content)
	if err != nil {
		return fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return u.txManager.RunInTx(ctx, func(ctx context.Context) error {
			return u.chunkRepo.ReplaceForDocument(ctx, doc.ID, nil)
		})
	}

	now := time.Now()
	stored := make([]domain.DocumentChunk, len(chunks))
	enrichFailures := 0
	for i, c := range chunks {
		enrichment, err := u.enricher.Enrich(ctx, *doc, c)
		if err != nil {
			enrichFailures++
			u.log.WarnContext(ctx, "chunk enrichment failed, indexing raw chunk",
				"ordinal", c.Ordinal, "error", err)
			enrichment = ""
		}
		stored[i] = domain.DocumentChunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Ordinal:    c.Ordinal,
			Content:    c.Content,
			Enrichment: enrichment,
			CreatedAt:  now,
		}
	}

	texts := make([]string, len(stored))
	for i, c := range stored {
		texts[i] = c.EmbeddingText()
	}
	embeddings, err := u.encoder.Encode(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(stored) {
		return fmt.Errorf("embeddings count mismatch: %d for %d chunks", len(embeddings), len(stored))
	}
	for i := range stored {
		stored[i].Embedding = pgvector.NewVector(embeddings[i])
	}

	err = u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		return u.chunkRepo.ReplaceForDocument(ctx, doc.ID, stored)
	})
	if err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	u.log.InfoContext(ctx, "document indexed",
		"chunks", len(stored),
		"enrich_failures", enrichFailures,
		"chunker", u.chunker.Version(),
		"embedder", u.encoder.Version(),
	)
	return nil
}

func (u *ingestUsecase) Delete(ctx context.Context, externalID string) error {
	return u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := u.docRepo.GetByExternalID(ctx, externalID)
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		if doc == nil || doc.Deleted {
			return nil
		}

		if err := u.docRepo.MarkDeleted(ctx, doc.ID); err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}
		if err := u.chunkRepo.ReplaceForDocument(ctx, doc.ID, nil); err != nil {
			return fmt.Errorf("drop chunks: %w", err)
		}
		return nil
	})
}
