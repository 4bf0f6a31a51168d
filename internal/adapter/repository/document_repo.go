package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"copilot-orchestrator/internal/domain"
)

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates the pgx-backed document repository.
func NewDocumentRepository(pool *pgxpool.Pool) domain.DocumentRepository {
	return &documentRepository{pool: pool}
}

const documentColumns = `id, external_id, title, content, source_hash, deleted, created_at, updated_at`

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkspaceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return r.scanOne(executor(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *documentRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.WorkspaceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE external_id = $1`
	return r.scanOne(executor(ctx, r.pool).QueryRow(ctx, query, externalID))
}

func (r *documentRepository) scanOne(row pgx.Row) (*domain.WorkspaceDocument, error) {
	var doc domain.WorkspaceDocument
	err := row.Scan(
		&doc.ID,
		&doc.ExternalID,
		&doc.Title,
		&doc.Content,
		&doc.SourceHash,
		&doc.Deleted,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) Upsert(ctx context.Context, doc *domain.WorkspaceDocument) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    content = EXCLUDED.content,
		    source_hash = EXCLUDED.source_hash,
		    deleted = EXCLUDED.deleted,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := executor(ctx, r.pool).Exec(ctx, query,
		doc.ID,
		doc.ExternalID,
		doc.Title,
		doc.Content,
		doc.SourceHash,
		doc.Deleted,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (r *documentRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE documents SET deleted = TRUE, updated_at = NOW() WHERE id = $1`
	if _, err := executor(ctx, r.pool).Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark document deleted: %w", err)
	}
	return nil
}
