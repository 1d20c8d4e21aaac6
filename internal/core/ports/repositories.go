package ports

import (
	"context"
	"iter"

	"userhub/internal/core/domain"
)

// UserRepository is the single source of truth for user records. All
// lookups by email or name are case-insensitive. A missing record is
// reported through the found flag, never as an error.
type UserRepository interface {
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error)
	FindAll(ctx context.Context) iter.Seq2[*domain.User, error]
	Update(ctx context.Context, id domain.UserID, patch domain.UserPatch) (*domain.User, bool, error)
	Delete(ctx context.Context, id domain.UserID) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmailExcludingID(ctx context.Context, email string, excludeID domain.UserID) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByNameExcludingID(ctx context.Context, name string, excludeID domain.UserID) (bool, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// WriteLock serializes user mutations across processes sharing a store.
// Calling release more than once is harmless.
type WriteLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}
