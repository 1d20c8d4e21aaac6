package reliability

import (
	"context"
	"iter"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/pkg/circuitbreaker"
	"userhub/pkg/retry"
	"userhub/pkg/utils"

	"go.uber.org/zap"
)

// UserRepositoryWrapper guards a remote UserRepository with retries and a
// circuit breaker. Each retry attempt goes through the breaker, so an open
// circuit stops the retry loop immediately.
type UserRepositoryWrapper struct {
	repo    ports.UserRepository
	logger  *zap.SugaredLogger
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
}

func NewUserRepositoryWrapper(
	repo ports.UserRepository,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *UserRepositoryWrapper {
	retryConfig.Permanent = retry.PermanentErrors(circuitbreaker.ErrOpen)

	w := &UserRepositoryWrapper{
		repo:    repo,
		logger:  logger,
		retry:   retryConfig,
		breaker: circuitbreaker.New(cbConfig),
	}

	w.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("user store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return w
}

func guarded[T any](ctx context.Context, w *UserRepositoryWrapper, fn func() (T, error)) (T, error) {
	return retry.Do(ctx, w.retry, func() (T, error) {
		return circuitbreaker.Call(ctx, w.breaker, fn)
	})
}

type found struct {
	user *domain.User
	ok   bool
}

// Save assigns the id up front so a retried save cannot create a second record.
func (w *UserRepositoryWrapper) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	user = user.Clone()
	if user.ID == "" {
		user.ID = domain.UserID(utils.GenerateUserID())
	}
	return guarded(ctx, w, func() (*domain.User, error) {
		return w.repo.Save(ctx, user)
	})
}

func (w *UserRepositoryWrapper) FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error) {
	res, err := guarded(ctx, w, func() (found, error) {
		user, ok, err := w.repo.FindByID(ctx, id)
		return found{user, ok}, err
	})
	return res.user, res.ok, err
}

// FindAll is not retried; a failure surfaces mid-iteration and the caller
// decides whether to restart.
func (w *UserRepositoryWrapper) FindAll(ctx context.Context) iter.Seq2[*domain.User, error] {
	return func(yield func(*domain.User, error) bool) {
		if w.breaker.GetState() == circuitbreaker.StateOpen {
			yield(nil, circuitbreaker.ErrOpen)
			return
		}
		for user, err := range w.repo.FindAll(ctx) {
			if err != nil {
				_ = w.breaker.Execute(ctx, func() error { return err })
			}
			if !yield(user, err) {
				return
			}
		}
	}
}

func (w *UserRepositoryWrapper) Update(ctx context.Context, id domain.UserID, patch domain.UserPatch) (*domain.User, bool, error) {
	res, err := guarded(ctx, w, func() (found, error) {
		user, ok, err := w.repo.Update(ctx, id, patch)
		return found{user, ok}, err
	})
	return res.user, res.ok, err
}

// Delete is not retried: a repeat after a committed delete whose reply was
// lost would find nothing and report the user as missing.
func (w *UserRepositoryWrapper) Delete(ctx context.Context, id domain.UserID) (bool, error) {
	return circuitbreaker.Call(ctx, w.breaker, func() (bool, error) {
		return w.repo.Delete(ctx, id)
	})
}

func (w *UserRepositoryWrapper) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return guarded(ctx, w, func() (bool, error) {
		return w.repo.ExistsByEmail(ctx, email)
	})
}

func (w *UserRepositoryWrapper) ExistsByEmailExcludingID(ctx context.Context, email string, excludeID domain.UserID) (bool, error) {
	return guarded(ctx, w, func() (bool, error) {
		return w.repo.ExistsByEmailExcludingID(ctx, email, excludeID)
	})
}

func (w *UserRepositoryWrapper) ExistsByName(ctx context.Context, name string) (bool, error) {
	return guarded(ctx, w, func() (bool, error) {
		return w.repo.ExistsByName(ctx, name)
	})
}

func (w *UserRepositoryWrapper) ExistsByNameExcludingID(ctx context.Context, name string, excludeID domain.UserID) (bool, error) {
	return guarded(ctx, w, func() (bool, error) {
		return w.repo.ExistsByNameExcludingID(ctx, name, excludeID)
	})
}

func (w *UserRepositoryWrapper) Count(ctx context.Context) (int, error) {
	return guarded(ctx, w, func() (int, error) {
		return w.repo.Count(ctx)
	})
}

func (w *UserRepositoryWrapper) Clear(ctx context.Context) error {
	return retry.Retry(ctx, w.retry, func() error {
		return w.breaker.Execute(ctx, func() error {
			return w.repo.Clear(ctx)
		})
	})
}

func (w *UserRepositoryWrapper) CircuitBreakerStats() circuitbreaker.Stats {
	return w.breaker.GetStats()
}
