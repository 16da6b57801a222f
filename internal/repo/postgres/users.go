package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// UserRepository backs the out-of-scope auth façade referenced by §3
// ("BusinessMember & Plan fields ... referenced only so that tenant id is a
// mandatory partition key"). Kept thin and unchanged in spirit from the
// teacher's CreateUser/GetUserByEmail; not a designed ingestion component.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

var _ repo.Users = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, u.ID, u.TenantID, u.FirstName, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, email)
	var u models.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return &u, nil
}
