package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// ChunkRepository persists the per-version chunk set, delete-then-insert
// idempotent within one transaction, same rationale as PageRepository.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository { return &ChunkRepository{db: db} }

var _ repo.Chunks = (*ChunkRepository)(nil)

func (r *ChunkRepository) ReplaceAll(ctx context.Context, versionID string, chunks []models.DocumentChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin chunks tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE version_id = $1`, versionID); err != nil {
		return fmt.Errorf("postgres: delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, version_id, chunk_index, text, page_start, page_end, sentences)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		sentences, err := json.Marshal(c.Sentences)
		if err != nil {
			return fmt.Errorf("postgres: marshal sentences: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, versionID, c.ChunkIndex, c.Text, c.PageStart, c.PageEnd, sentences); err != nil {
			return fmt.Errorf("postgres: insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByVersion(ctx context.Context, versionID string) ([]models.DocumentChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version_id, chunk_index, text, page_start, page_end, sentences
		FROM document_chunks WHERE version_id = $1 ORDER BY chunk_index ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list chunks: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		var sentencesRaw []byte
		if err := rows.Scan(&c.ID, &c.VersionID, &c.ChunkIndex, &c.Text, &c.PageStart, &c.PageEnd, &sentencesRaw); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		if len(sentencesRaw) > 0 {
			_ = json.Unmarshal(sentencesRaw, &c.Sentences)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
