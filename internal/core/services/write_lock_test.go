package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"userhub/internal/core/domain"
	"userhub/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLock struct {
	mu       sync.Mutex
	acquired int
	released int
	err      error
}

func (l *countingLock) Acquire(context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestSharedWriteLock_HeldForEveryMutation(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemoryUserRepository()
	lock := &countingLock{}
	svc := NewUserService(repo, NewUserValidator(repo), &recordingPublisher{}, nil, nil, WithSharedWriteLock(lock))

	user, err := svc.CreateUser(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)
	_, err = svc.UpdateUser(ctx, user.ID, "Anna", "ann@example.com")
	require.NoError(t, err)
	_, err = svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, user.ID))

	assert.Equal(t, 3, lock.acquired)
	assert.Equal(t, 3, lock.released)
}

func TestSharedWriteLock_FailureIsInternal(t *testing.T) {
	repo := memory.NewMemoryUserRepository()
	lock := &countingLock{err: errors.New("redis: connection refused")}
	publisher := &recordingPublisher{}
	svc := NewUserService(repo, NewUserValidator(repo), publisher, nil, nil, WithSharedWriteLock(lock))

	_, err := svc.CreateUser(context.Background(), "Ann", "ann@example.com")
	assert.ErrorIs(t, err, domain.ErrInternal)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, publisher.Events())
}
