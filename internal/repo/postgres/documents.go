package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// DocumentRepository persists Document aggregates, grounded on
// kk7453603-AIAssistent's DocumentRepository (GetByID/UpdateStatus shape).
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository { return &DocumentRepository{db: db} }

var _ repo.Documents = (*DocumentRepository)(nil)

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	labels, err := json.Marshal(doc.Labels)
	if err != nil {
		return fmt.Errorf("postgres: marshal labels: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (id, tenant_id, title, filename, status, uploader_id, labels, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, doc.ID, doc.TenantID, doc.Title, doc.Filename, string(doc.Status), doc.UploaderID, labels, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, tenantID, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, title, filename, status, uploader_id, labels, created_at, updated_at, deleted_at
		FROM documents WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	var doc models.Document
	var status string
	var labelsRaw []byte
	if err := row.Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.Filename, &status, &doc.UploaderID,
		&labelsRaw, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("postgres: document not found: %s", id)
		}
		return nil, fmt.Errorf("postgres: scan document: %w", err)
	}
	doc.Status = models.DocumentStatus(status)
	if len(labelsRaw) > 0 {
		_ = json.Unmarshal(labelsRaw, &doc.Labels)
	}
	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, tenantID string) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, title, filename, status, uploader_id, labels, created_at, updated_at, deleted_at
		FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var doc models.Document
		var status string
		var labelsRaw []byte
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.Filename, &status, &doc.UploaderID,
			&labelsRaw, &doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan document row: %w", err)
		}
		doc.Status = models.DocumentStatus(status)
		if len(labelsRaw) > 0 {
			_ = json.Unmarshal(labelsRaw, &doc.Labels)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, tenantID, id string, status models.DocumentStatus) error {
	var deletedAt any
	if status == models.DocumentDeleted {
		deletedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = $3, updated_at = $4, deleted_at = COALESCE($5, deleted_at)
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, string(status), time.Now().UTC(), deletedAt)
	if err != nil {
		return fmt.Errorf("postgres: update document status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("postgres: document not found: %s", id)
	}
	return nil
}
