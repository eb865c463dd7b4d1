package ports

import (
	"context"

	"github.com/formsage/backend/internal/domain/models"
)

// UserStore persists user accounts. Lookups return (nil, nil) when the
// user does not exist.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string) error
}
