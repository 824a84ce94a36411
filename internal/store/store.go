// Package store holds the durable system-of-record for accounts. The
// cache in internal/cache is only ever a lookaside copy of what lives
// here.
package store

import (
	"context"
	"errors"

	"github.com/jchoi-dev/account-service/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when a unique constraint (email,
	// nickname) would be violated.
	ErrConflict = errors.New("duplicate value")
)

// UserStore is the single-row-consistent account repository. The
// refresh-token column is mutated only through Update, by the session
// lifecycle and user services.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id int64) error
}

// ActivityStore records append-only account events.
type ActivityStore interface {
	Record(ctx context.Context, a *models.Activity) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Activity, error)
}
