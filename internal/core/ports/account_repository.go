package ports

import (
	"context"

	"github.com/englishadventure/user-service/internal/core/domain"
)

// AccountRepository defines persistence operations for accounts.
//
// Implementations translate driver errors into domain errors:
// missing rows become domain.ErrAccountNotFound and unique-index violations
// on username or email become domain.ErrAccountExists.
type AccountRepository interface {
	// Create assigns a new id to the account and persists it.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Update writes every mutable field when the stored version still equals
	// account.Version, then bumps account.Version. A stale version yields
	// domain.ErrVersionConflict.
	Update(ctx context.Context, account *domain.Account) error
	// TopByExperience returns up to limit accounts ordered by experience
	// descending, ties broken by id ascending.
	TopByExperience(ctx context.Context, limit int) ([]*domain.Account, error)
}
