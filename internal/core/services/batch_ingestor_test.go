package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"userhub/internal/core/domain"
	"userhub/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func req(name, email string) *domain.CreateUserRequest {
	return &domain.CreateUserRequest{Name: name, Email: email}
}

func TestCreateUsers_EmptyStream(t *testing.T) {
	f := newFixture()

	result, err := f.svc.CreateUsers(context.Background(), &sliceSource{})
	require.NoError(t, err)
	assert.Zero(t, result.CreatedCount)
	assert.NotNil(t, result.CreatedIDs)
	assert.Empty(t, result.CreatedIDs)
	assert.NotNil(t, result.Errors)
	assert.Empty(t, result.Errors)
}

func TestCreateUsers_PartialFailure(t *testing.T) {
	f := newFixture()
	src := &sliceSource{reqs: []*domain.CreateUserRequest{
		req("Alice", "alice@example.com"),
		req("", "blank@example.com"),
		req("Bob", "bob@example.com"),
		req("Carl", "alice@example.com"),
		req("Dora", "dora@example.com"),
	}}

	result, err := f.svc.CreateUsers(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 3, result.CreatedCount)
	assert.Len(t, result.CreatedIDs, 3)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "request #2: name is required", result.Errors[0])
	assert.Equal(t, "request #4: email alice@example.com is already in use", result.Errors[1])

	assert.Len(t, f.publisher.Events(), 3)
	assert.Equal(t, 1, f.metrics.batches)
	assert.Equal(t, 3, f.metrics.created)
	assert.Equal(t, 2, f.metrics.failures)
}

func TestCreateUsers_ManyInvalid(t *testing.T) {
	f := newFixture()
	const k, m = 20, 7

	var reqs []*domain.CreateUserRequest
	for i := 0; i < k; i++ {
		if i < m {
			reqs = append(reqs, req("", fmt.Sprintf("x%d@example.com", i)))
			continue
		}
		reqs = append(reqs, req(fmt.Sprintf("User %c", 'A'+i), fmt.Sprintf("u%d@example.com", i)))
	}

	result, err := f.svc.CreateUsers(context.Background(), &sliceSource{reqs: reqs})
	require.NoError(t, err)
	assert.Equal(t, k-m, result.CreatedCount)
	assert.Len(t, result.CreatedIDs, k-m)
	assert.Len(t, result.Errors, m)
}

func TestCreateUsers_IDsInArrivalOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	src := &sliceSource{reqs: []*domain.CreateUserRequest{
		req("Alice", "alice@example.com"),
		req("Bob", "bob@example.com"),
	}}

	result, err := f.svc.CreateUsers(ctx, src)
	require.NoError(t, err)

	first, err := f.svc.GetUser(ctx, result.CreatedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "Alice", first.Name)
	second, err := f.svc.GetUser(ctx, result.CreatedIDs[1])
	require.NoError(t, err)
	assert.Equal(t, "Bob", second.Name)
}

func TestCreateUsers_TransportFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	broken := errors.New("stream reset")
	src := &sliceSource{
		reqs:     []*domain.CreateUserRequest{req("Alice", "alice@example.com")},
		failWith: broken,
	}

	result, err := f.svc.CreateUsers(ctx, src)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.ErrorIs(t, err, broken)

	// no rollback of what was already stored
	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, f.publisher.Events(), 1)
	assert.Zero(t, f.metrics.batches)
}

func TestCreateUsers_CancelledContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.svc.CreateUsers(ctx, &sliceSource{reqs: []*domain.CreateUserRequest{req("Alice", "alice@example.com")}})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateUsers_StoreFailureCapturedPerItem(t *testing.T) {
	f := newFixtureWithRepo(failingRepository{memory.NewMemoryUserRepository()})
	src := &sliceSource{reqs: []*domain.CreateUserRequest{
		req("Alice", "alice@example.com"),
		nil,
	}}

	result, err := f.svc.CreateUsers(context.Background(), src)
	require.NoError(t, err)
	assert.Zero(t, result.CreatedCount)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "request #1: internal error", result.Errors[0])
	assert.Equal(t, "request #2: name is required", result.Errors[1])
	assert.NotContains(t, result.Errors[0], errStore.Error())
}
