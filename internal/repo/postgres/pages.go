package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// PageRepository persists the per-version page set. ReplaceAll is the
// delete-then-insert idempotence §4.9/§9 require: re-running the parse
// stage after a partial failure is safe because the prior rows for this
// version are wiped inside the same transaction as the new insert.
type PageRepository struct {
	db *sql.DB
}

func NewPageRepository(db *sql.DB) *PageRepository { return &PageRepository{db: db} }

var _ repo.Pages = (*PageRepository)(nil)

func (r *PageRepository) ReplaceAll(ctx context.Context, versionID string, pages []models.DocumentPage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin pages tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_pages WHERE version_id = $1`, versionID); err != nil {
		return fmt.Errorf("postgres: delete pages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_pages (version_id, page_number, text, char_count) VALUES ($1,$2,$3,$4)
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, versionID, p.PageNumber, p.Text, p.CharCount); err != nil {
			return fmt.Errorf("postgres: insert page %d: %w", p.PageNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit pages tx: %w", err)
	}
	return nil
}

func (r *PageRepository) ListByVersion(ctx context.Context, versionID string) ([]models.DocumentPage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT version_id, page_number, text, char_count FROM document_pages
		WHERE version_id = $1 ORDER BY page_number ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pages: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentPage
	for rows.Next() {
		var p models.DocumentPage
		if err := rows.Scan(&p.VersionID, &p.PageNumber, &p.Text, &p.CharCount); err != nil {
			return nil, fmt.Errorf("postgres: scan page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
