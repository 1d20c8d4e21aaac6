package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/pkg/tracing"
	"userhub/pkg/utils"

	"go.uber.org/zap"
)

const (
	OutcomeOK              = "ok"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeAlreadyExists   = "already_exists"
	OutcomeNotFound        = "not_found"
	OutcomeInternal        = "internal"
)

type userService struct {
	repo      ports.UserRepository
	validator ports.Validator
	publisher ports.NotificationPublisher
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger

	// writeMu serializes validate-then-write so two concurrent creates
	// cannot both pass the uniqueness check. sharedLock extends that to
	// other processes using the same store.
	writeMu    sync.Mutex
	sharedLock ports.WriteLock
}

type Option func(*userService)

// WithSharedWriteLock makes every mutation also hold l.
func WithSharedWriteLock(l ports.WriteLock) Option {
	return func(s *userService) {
		s.sharedLock = l
	}
}

func NewUserService(
	repo ports.UserRepository,
	validator ports.Validator,
	publisher ports.NotificationPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
	opts ...Option,
) ports.UserService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &userService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockWrites takes the writer mutex and, when configured, the shared lock.
func (s *userService) lockWrites(ctx context.Context) (func(), error) {
	s.writeMu.Lock()
	if s.sharedLock == nil {
		return s.writeMu.Unlock, nil
	}

	release, err := s.sharedLock.Acquire(ctx)
	if err != nil {
		s.writeMu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: acquire write lock: %w", domain.ErrInternal, err)
	}
	return func() {
		release()
		s.writeMu.Unlock()
	}, nil
}

func (s *userService) CreateUser(ctx context.Context, name, email string) (*domain.User, error) {
	ctx, span := tracing.TraceUserOperation(ctx, "create", "")
	defer span.End()

	var user *domain.User
	unlock, err := s.lockWrites(ctx)
	if err == nil {
		user, err = s.createLocked(ctx, name, email)
		unlock()
	}

	s.finish(ctx, "create", err)
	if err != nil {
		return nil, err
	}
	tracing.AddSpanAttributes(ctx, tracing.UserIDKey.String(string(user.ID)))
	s.logger.Infow("user created", "user_id", user.ID, "email", utils.MaskEmail(user.Email))
	return user, nil
}

// createLocked must be called with the write lock held.
func (s *userService) createLocked(ctx context.Context, name, email string) (*domain.User, error) {
	if err := s.validator.ValidateCreate(ctx, name, email); err != nil {
		return nil, err
	}

	user, err := s.repo.Save(ctx, &domain.User{Name: name, Email: email})
	if err != nil {
		return nil, fmt.Errorf("%w: save user: %w", domain.ErrInternal, err)
	}

	s.publisher.BroadcastCreated(user)
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	ctx, span := tracing.TraceUserOperation(ctx, "get", string(id))
	defer span.End()

	user, ok, err := s.repo.FindByID(ctx, id)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: find user: %w", domain.ErrInternal, err)
	case !ok:
		err = domain.ErrUserNotFound
	}

	s.finish(ctx, "get", err)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser reports NotFound before running any validation.
func (s *userService) UpdateUser(ctx context.Context, id domain.UserID, name, email string) (*domain.User, error) {
	ctx, span := tracing.TraceUserOperation(ctx, "update", string(id))
	defer span.End()

	var user *domain.User
	unlock, err := s.lockWrites(ctx)
	if err == nil {
		user, err = s.updateLocked(ctx, id, name, email)
		unlock()
	}

	s.finish(ctx, "update", err)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("user updated", "user_id", id, "email", utils.MaskEmail(user.Email))
	return user, nil
}

func (s *userService) updateLocked(ctx context.Context, id domain.UserID, name, email string) (*domain.User, error) {
	_, ok, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %w", domain.ErrInternal, err)
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	if err := s.validator.ValidateUpdate(ctx, id, name, email); err != nil {
		return nil, err
	}

	user, ok, err := s.repo.Update(ctx, id, domain.UserPatch{Name: name, Email: email})
	if err != nil {
		return nil, fmt.Errorf("%w: update user: %w", domain.ErrInternal, err)
	}
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	s.publisher.BroadcastUpdated(user)
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id domain.UserID) error {
	ctx, span := tracing.TraceUserOperation(ctx, "delete", string(id))
	defer span.End()

	unlock, err := s.lockWrites(ctx)
	if err == nil {
		err = s.deleteLocked(ctx, id)
		unlock()
	}

	s.finish(ctx, "delete", err)
	if err == nil {
		s.logger.Infow("user deleted", "user_id", id)
	}
	return err
}

func (s *userService) deleteLocked(ctx context.Context, id domain.UserID) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: delete user: %w", domain.ErrInternal, err)
	}
	if !removed {
		return domain.ErrUserNotFound
	}
	s.publisher.BroadcastDeleted(id)
	return nil
}

// ListUsers streams a snapshot of the store. Store failures surface as
// ErrInternal.
func (s *userService) ListUsers(ctx context.Context) iter.Seq2[*domain.User, error] {
	return func(yield func(*domain.User, error) bool) {
		for user, err := range s.repo.FindAll(ctx) {
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					err = fmt.Errorf("%w: list users: %w", domain.ErrInternal, err)
				}
				s.metrics.RecordUserOperation("list", outcomeOf(err))
				yield(nil, err)
				return
			}
			if !yield(user, nil) {
				return
			}
		}
		s.metrics.RecordUserOperation("list", OutcomeOK)
	}
}

func (s *userService) finish(ctx context.Context, op string, err error) {
	outcome := outcomeOf(err)
	s.metrics.RecordUserOperation(op, outcome)
	tracing.AddSpanAttributes(ctx, tracing.OutcomeKey.String(outcome))

	if outcome == OutcomeInternal {
		tracing.RecordError(ctx, err)
		s.logger.Errorw("user operation failed", "operation", op, "error", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrUserNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrDuplicateField):
		return OutcomeAlreadyExists
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalidArgument
	default:
		return OutcomeInternal
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordUserOperation(string, string) {}
func (nopMetrics) RecordBatch(int, int)               {}
