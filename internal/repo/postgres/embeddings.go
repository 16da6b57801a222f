package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// EmbeddingRepository persists the per-chunk vector index, using
// pgvector-go's Vector wire codec for the `vector(1536)` column.
// Delete-then-insert within a transaction, scoped per version (a chunk's
// embedding row is keyed by chunk_id, so replacing by version means deleting
// every embedding that belongs to a chunk of this version first).
type EmbeddingRepository struct {
	db *sql.DB
}

func NewEmbeddingRepository(db *sql.DB) *EmbeddingRepository { return &EmbeddingRepository{db: db} }

var _ repo.Embeddings = (*EmbeddingRepository)(nil)

func (r *EmbeddingRepository) ReplaceAllForVersion(ctx context.Context, versionID string, embeddings []models.ChunkEmbedding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin embeddings tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM chunk_embeddings
		WHERE chunk_id IN (SELECT id FROM document_chunks WHERE version_id = $1)
	`, versionID)
	if err != nil {
		return fmt.Errorf("postgres: delete embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_embeddings (chunk_id, vector, model) VALUES ($1,$2,$3)
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range embeddings {
		vec := pgvector.NewVector(e.Vector)
		if _, err := stmt.ExecContext(ctx, e.ChunkID, vec, e.Model); err != nil {
			return fmt.Errorf("postgres: insert embedding for chunk %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit embeddings tx: %w", err)
	}
	return nil
}

// SearchSimilar finds the k nearest chunks to query within a version by
// cosine distance, adapted from the teacher's SearchDocumentChunks endpoint
// (kept as a natural pgvector-go consumer; not in spec.md's explicit scope
// but doesn't conflict with any Non-goal — see DESIGN.md).
func (r *EmbeddingRepository) SearchSimilar(ctx context.Context, versionID string, query []float32, k int) ([]models.DocumentChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.version_id, c.chunk_index, c.text, c.page_start, c.page_end
		FROM chunk_embeddings e
		JOIN document_chunks c ON c.id = e.chunk_id
		WHERE c.version_id = $1
		ORDER BY e.vector <=> $2
		LIMIT $3
	`, versionID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("postgres: search similar: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(&c.ID, &c.VersionID, &c.ChunkIndex, &c.Text, &c.PageStart, &c.PageEnd); err != nil {
			return nil, fmt.Errorf("postgres: scan similar chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
