package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// VersionRepository persists DocumentVersion rows. Version numbers are
// assigned by the caller (the upload-init flow creates version 1 of each new
// document),
// keeping the dense 1..n invariant (§8 "version monotonicity") out of SQL.
type VersionRepository struct {
	db *sql.DB
}

func NewVersionRepository(db *sql.DB) *VersionRepository { return &VersionRepository{db: db} }

var _ repo.Versions = (*VersionRepository)(nil)

func (r *VersionRepository) Create(ctx context.Context, v *models.DocumentVersion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_versions
			(id, document_id, tenant_id, version_number, object_key, mime_type, file_size, content_hash, materialized, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, v.ID, v.DocumentID, v.TenantID, v.VersionNumber, v.ObjectKey, v.MimeType, v.FileSize, v.ContentHash, v.Materialized, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert version: %w", err)
	}
	return nil
}

func (r *VersionRepository) Get(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, document_id, tenant_id, version_number, object_key, mime_type, file_size, content_hash, materialized, created_at
		FROM document_versions WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	var v models.DocumentVersion
	if err := row.Scan(&v.ID, &v.DocumentID, &v.TenantID, &v.VersionNumber, &v.ObjectKey, &v.MimeType,
		&v.FileSize, &v.ContentHash, &v.Materialized, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("postgres: version not found: %s", id)
		}
		return nil, fmt.Errorf("postgres: scan version: %w", err)
	}
	return &v, nil
}

// MarkMaterialized records the byte length and content hash Complete Upload
// observed, transitioning the version from reserved to materialized (§3).
func (r *VersionRepository) MarkMaterialized(ctx context.Context, tenantID, id string, fileSize int64, contentHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE document_versions SET file_size = $3, content_hash = $4, materialized = true
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, fileSize, contentHash)
	if err != nil {
		return fmt.Errorf("postgres: mark materialized: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("postgres: version not found: %s", id)
	}
	return nil
}
