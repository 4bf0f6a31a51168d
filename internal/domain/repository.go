package domain

import (
	"context"

	"github.com/google/uuid"
)

// DocumentRepository manages workspace documents.
type DocumentRepository interface {
	// GetByID returns nil, nil when the document is unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*WorkspaceDocument, error)
	// GetByExternalID returns nil, nil when the document is unknown.
	GetByExternalID(ctx context.Context, externalID string) (*WorkspaceDocument, error)
	Upsert(ctx context.Context, doc *WorkspaceDocument) error
	// MarkDeleted tombstones a document; its chunks stop matching searches.
	MarkDeleted(ctx context.Context, id uuid.UUID) error
}

// ChunkHit is one chunk returned by a search leg, with the leg's own score
// (cosine similarity for the semantic leg, ts_rank for the keyword leg).
type ChunkHit struct {
	Chunk    DocumentChunk
	DocTitle string
	Score    float64
}

// ChunkRepository manages document chunks and serves both search legs.
type ChunkRepository interface {
	ReplaceForDocument(ctx context.Context, documentID uuid.UUID, chunks []DocumentChunk) error
	SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]ChunkHit, error)
	KeywordSearch(ctx context.Context, query string, limit int) ([]ChunkHit, error)
	// ListUnenriched pages through chunks stored without an enrichment
	// preamble, for offline repair.
	ListUnenriched(ctx context.Context, limit int) ([]DocumentChunk, error)
	UpdateEnrichment(ctx context.Context, chunk DocumentChunk) error
}

// WorkspaceRecord is one row of a structured database, flattened for search
// and citation.
type WorkspaceRecord struct {
	ID         string
	DatabaseID string
	Title      string
	Fields     map[string]string
}

// RecordStore reads the structured side of the workspace.
type RecordStore interface {
	ListDatabases(ctx context.Context) ([]DatabaseDescriptor, error)
	// SearchRecords keyword-matches records, scoped by the plan when it is
	// non-empty.
	SearchRecords(ctx context.Context, query string, plan DatabaseFilterPlan, limit int) ([]WorkspaceRecord, error)
}

// JobRepository manages the ingestion queue.
type JobRepository interface {
	Enqueue(ctx context.Context, job *IngestJob) error
	// AcquireNext claims the oldest pending job, or nil, nil when the queue
	// is empty. Claiming must be safe under concurrent workers.
	AcquireNext(ctx context.Context) (*IngestJob, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	// MarkFailed records the error; the job returns to pending until the
	// attempt cap, then parks as failed.
	MarkFailed(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error
	GetByID(ctx context.Context, id uuid.UUID) (*IngestJob, error)
	// RequeueFailed flips parked jobs back to pending. Returns the count.
	RequeueFailed(ctx context.Context, limit int) (int, error)
}

// TransactionManager runs a function inside one database transaction.
// Repository calls made with the inner context join that transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
