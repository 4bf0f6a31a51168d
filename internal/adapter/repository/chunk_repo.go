package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"copilot-orchestrator/internal/domain"
)

type chunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository creates the pgx-backed chunk repository. The embedding
// column is a pgvector column; both search legs exclude chunks of
// tombstoned documents.
func NewChunkRepository(pool *pgxpool.Pool) domain.ChunkRepository {
	return &chunkRepository{pool: pool}
}

func (r *chunkRepository) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, chunks []domain.DocumentChunk) error {
	exec := executor(ctx, r.pool)

	if _, err := exec.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		rows[i] = []interface{}{
			chunk.ID,
			chunk.DocumentID,
			chunk.Ordinal,
			chunk.Content,
			chunk.Enrichment,
			chunk.Embedding,
			chunk.CreatedAt,
		}
	}

	_, err := exec.CopyFrom(
		ctx,
		pgx.Identifier{"document_chunks"},
		[]string{"id", "document_id", "ordinal", "content", "enrichment", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}
	return nil
}

func (r *chunkRepository) SemanticSearch(ctx context.Context, embedding []float32, limit int) ([]domain.ChunkHit, error) {
	query := `
		SELECT c.id, c.document_id, c.ordinal, c.content, c.enrichment, c.created_at,
		       d.title,
		       1 - (c.embedding <=> $1) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.deleted = FALSE
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run semantic search: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

func (r *chunkRepository) KeywordSearch(ctx context.Context, query string, limit int) ([]domain.ChunkHit, error) {
	// concat_ws folds the enrichment preamble into the searchable text, so
	// enriched chunks match vocabulary from their document context too.
	sql := `
		SELECT c.id, c.document_id, c.ordinal, c.content, c.enrichment, c.created_at,
		       d.title,
		       ts_rank_cd(tsv, tsq) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id,
		     websearch_to_tsquery('english', $1) tsq,
		     to_tsvector('english', concat_ws(' ', c.enrichment, c.content)) tsv
		WHERE d.deleted = FALSE AND tsv @@ tsq
		ORDER BY score DESC
		LIMIT $2
	`
	rows, err := executor(ctx, r.pool).Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

func scanHits(rows pgx.Rows) ([]domain.ChunkHit, error) {
	var hits []domain.ChunkHit
	for rows.Next() {
		var h domain.ChunkHit
		err := rows.Scan(
			&h.Chunk.ID,
			&h.Chunk.DocumentID,
			&h.Chunk.Ordinal,
			&h.Chunk.Content,
			&h.Chunk.Enrichment,
			&h.Chunk.CreatedAt,
			&h.DocTitle,
			&h.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

func (r *chunkRepository) ListUnenriched(ctx context.Context, limit int) ([]domain.DocumentChunk, error) {
	query := `
		SELECT c.id, c.document_id, c.ordinal, c.content, c.enrichment, c.created_at
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.enrichment = '' AND d.deleted = FALSE
		ORDER BY c.created_at ASC, c.ordinal ASC
		LIMIT $1
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unenriched chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &c.Enrichment, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepository) UpdateEnrichment(ctx context.Context, chunk domain.DocumentChunk) error {
	query := `UPDATE document_chunks SET enrichment = $2, embedding = $3 WHERE id = $1`
	_, err := executor(ctx, r.pool).Exec(ctx, query, chunk.ID, chunk.Enrichment, chunk.Embedding)
	if err != nil {
		return fmt.Errorf("failed to update enrichment: %w", err)
	}
	return nil
}
