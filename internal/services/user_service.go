package services

import (
	"context"
	"errors"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// UserService backs the out-of-scope auth façade (§3): thin glue the spec
// references but does not design, kept only because the JWT middleware
// needs somewhere to authenticate against.
type UserService struct {
	db repo.Users
}

func NewUserService(db repo.Users) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Create(ctx context.Context, u *models.User) error {
	if u == nil || u.Email == "" || u.PasswordHash == "" {
		return errors.New("invalid user payload")
	}
	return s.db.Create(ctx, u)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.db.GetByEmail(ctx, email)
}
