package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"copilot-orchestrator/internal/domain"
)

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates the pgx-backed ingestion queue.
func NewJobRepository(pool *pgxpool.Pool) domain.JobRepository {
	return &jobRepository{pool: pool}
}

const jobColumns = `id, document_id, status, attempts, last_error, created_at, updated_at`

func (r *jobRepository) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	query := `
		INSERT INTO ingest_jobs (id, document_id, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := executor(ctx, r.pool).Exec(ctx, query,
		job.ID,
		job.DocumentID,
		job.Status,
		job.Attempts,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// AcquireNext claims the oldest pending job and flips it to processing in one
// statement. SKIP LOCKED keeps concurrent workers from fighting over the same
// row.
func (r *jobRepository) AcquireNext(ctx context.Context) (*domain.IngestJob, error) {
	query := `
		WITH next_job AS (
			SELECT id
			FROM ingest_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE ingest_jobs
		SET status = 'processing', attempts = ingest_jobs.attempts + 1, updated_at = $1
		FROM next_job
		WHERE ingest_jobs.id = next_job.id
		RETURNING ingest_jobs.id, ingest_jobs.document_id, ingest_jobs.status,
		          ingest_jobs.attempts, ingest_jobs.last_error,
		          ingest_jobs.created_at, ingest_jobs.updated_at
	`
	row := executor(ctx, r.pool).QueryRow(ctx, query, time.Now())

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to acquire next job: %w", err)
	}
	return job, nil
}

func (r *jobRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE ingest_jobs SET status = 'done', updated_at = $2 WHERE id = $1`
	_, err := executor(ctx, r.pool).Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	return nil
}

func (r *jobRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	// Attempts was already bumped on acquire, so the comparison decides
	// whether another run is left.
	query := `
		UPDATE ingest_jobs
		SET status = CASE WHEN attempts >= $3 THEN 'failed' ELSE 'pending' END,
		    last_error = $2,
		    updated_at = $4
		WHERE id = $1
	`
	_, err := executor(ctx, r.pool).Exec(ctx, query, id, cause, maxAttempts, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.IngestJob, error) {
	query := `SELECT ` + jobColumns + ` FROM ingest_jobs WHERE id = $1`
	row := executor(ctx, r.pool).QueryRow(ctx, query, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *jobRepository) RequeueFailed(ctx context.Context, limit int) (int, error) {
	query := `
		WITH parked AS (
			SELECT id
			FROM ingest_jobs
			WHERE status = 'failed'
			ORDER BY updated_at ASC
			LIMIT $1
		)
		UPDATE ingest_jobs
		SET status = 'pending', attempts = 0, updated_at = $2
		FROM parked
		WHERE ingest_jobs.id = parked.id
	`
	tag, err := executor(ctx, r.pool).Exec(ctx, query, limit, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.IngestJob, error) {
	var job domain.IngestJob
	err := row.Scan(
		&job.ID,
		&job.DocumentID,
		&job.Status,
		&job.Attempts,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
