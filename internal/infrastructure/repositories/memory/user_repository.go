package memory

import (
	"context"
	"iter"
	"sync"
	"time"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/pkg/utils"
)

type MemoryUserRepository struct {
	users map[domain.UserID]*domain.User
	mu    sync.RWMutex
	now   func() time.Time
}

func NewMemoryUserRepository() ports.UserRepository {
	return newMemoryUserRepository(time.Now)
}

func newMemoryUserRepository(now func() time.Time) *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[domain.UserID]*domain.User),
		now:   now,
	}
}

// Save inserts the user, generating an id when empty. Saving an existing
// id acts as an update that keeps the original CreatedAt.
func (r *MemoryUserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := user.Clone()
	if stored.ID == "" {
		stored.ID = domain.UserID(utils.GenerateUserID())
	}

	now := r.now()
	if existing, exists := r.users[stored.ID]; exists {
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = nextUpdatedAt(existing.UpdatedAt, now)
	} else {
		stored.CreatedAt = now
		stored.UpdatedAt = now
	}

	r.users[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, false, nil
	}
	return user.Clone(), true, nil
}

// FindAll iterates a snapshot taken when iteration starts. Each call
// yields a fresh sequence.
func (r *MemoryUserRepository) FindAll(ctx context.Context) iter.Seq2[*domain.User, error] {
	return func(yield func(*domain.User, error) bool) {
		r.mu.RLock()
		snapshot := make([]*domain.User, 0, len(r.users))
		for _, user := range r.users {
			snapshot = append(snapshot, user.Clone())
		}
		r.mu.RUnlock()

		for _, user := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(user, nil) {
				return
			}
		}
	}
}

func (r *MemoryUserRepository) Update(ctx context.Context, id domain.UserID, patch domain.UserPatch) (*domain.User, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.users[id]
	if !exists {
		return nil, false, nil
	}

	updated := existing.Clone()
	updated.Name = patch.Name
	updated.Email = patch.Email
	updated.UpdatedAt = nextUpdatedAt(existing.UpdatedAt, r.now())

	r.users[id] = updated
	return updated.Clone(), true, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id domain.UserID) (bool, error) {
	if id == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[id]; !exists {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.ExistsByEmailExcludingID(ctx, email, "")
}

func (r *MemoryUserRepository) ExistsByEmailExcludingID(ctx context.Context, email string, excludeID domain.UserID) (bool, error) {
	return r.exists(func(u *domain.User) string { return u.Email }, email, excludeID), nil
}

func (r *MemoryUserRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.ExistsByNameExcludingID(ctx, name, "")
}

func (r *MemoryUserRepository) ExistsByNameExcludingID(ctx context.Context, name string, excludeID domain.UserID) (bool, error) {
	return r.exists(func(u *domain.User) string { return u.Name }, name, excludeID), nil
}

// exists scans every record; fine for the in-memory sizes this store serves.
func (r *MemoryUserRepository) exists(field func(*domain.User) string, value string, excludeID domain.UserID) bool {
	if value == "" {
		return false
	}
	key := utils.FoldKey(value)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, user := range r.users {
		if id == excludeID {
			continue
		}
		if utils.FoldKey(field(user)) == key {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *MemoryUserRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[domain.UserID]*domain.User)
	return nil
}

// nextUpdatedAt never lets UpdatedAt move backwards, even if the clock does.
func nextUpdatedAt(prev, now time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}
