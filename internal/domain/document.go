package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// WorkspaceDocument is a prose document of the user workspace as stored by
// the ingestion path. SourceHash makes re-ingestion idempotent.
type WorkspaceDocument struct {
	ID         uuid.UUID
	ExternalID string
	Title      string
	Content    string
	SourceHash string
	Deleted    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentChunk is one indexed segment of a document. Enrichment is the
// model-written contextual preamble; empty means the enricher failed or has
// not run, which never blocks indexing.
type DocumentChunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Ordinal    int
	Content    string
	Enrichment string
	Embedding  pgvector.Vector
	CreatedAt  time.Time
}

// EmbeddingText is what the vector encoder sees: the enrichment preamble, if
// present, prepended to the chunk content.
func (c DocumentChunk) EmbeddingText() string {
	if c.Enrichment == "" {
		return c.Content
	}
	return c.Enrichment + "\n\n" + c.Content
}

// JobStatus is the lifecycle of an ingestion job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// IngestJob queues one document for (re)indexing. Attempts counts processing
// starts; the worker parks the job as failed once the cap is reached.
type IngestJob struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Status     JobStatus
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
