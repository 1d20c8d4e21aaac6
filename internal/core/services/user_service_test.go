package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"userhub/internal/core/domain"
	"userhub/internal/infrastructure/notification"
	"userhub/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	created, err := f.svc.CreateUser(ctx, "Alice Smith", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Alice Smith", created.Name)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	updated, err := f.svc.UpdateUser(ctx, created.ID, "Alice Jones", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	assert.Equal(t, "Alice Jones", updated.Name)

	require.NoError(t, f.svc.DeleteUser(ctx, created.ID))

	_, err = f.svc.GetUser(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	events := f.publisher.Events()
	require.Len(t, events, 3)
	assert.Equal(t, domain.NotificationCreated, events[0].Type)
	assert.Equal(t, domain.NotificationUpdated, events[1].Type)
	assert.Equal(t, domain.NotificationDeleted, events[2].Type)
	assert.Equal(t, created.ID, events[2].User.ID)

	assert.Equal(t, 1, f.metrics.count("create/ok"))
	assert.Equal(t, 1, f.metrics.count("get/not_found"))
}

func TestCreateUser_BlankName(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateUser(context.Background(), "", "x@example.com")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.publisher.Events())
	assert.Equal(t, 1, f.metrics.count("create/invalid_argument"))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.svc.CreateUser(ctx, "Bob", "bob@x.com")
	require.NoError(t, err)
	_, err = f.svc.CreateUser(ctx, "Carl", "bob@x.com")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.DuplicateEmail, verr.Kind)
	assert.Len(t, f.publisher.Events(), 1)
}

func TestCreateUser_StoreFailureIsInternal(t *testing.T) {
	f := newFixtureWithRepo(failingRepository{memory.NewMemoryUserRepository()})

	_, err := f.svc.CreateUser(context.Background(), "Alice", "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, 1, f.metrics.count("create/internal"))
}

func TestUpdateUser_NotFoundBeforeValidation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateUser(context.Background(), "missing", "", "not-an-email")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUpdateUser_InvalidAndDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	alice, err := f.svc.CreateUser(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	_, err = f.svc.CreateUser(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)

	_, err = f.svc.UpdateUser(ctx, alice.ID, "Alice", "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.UpdateUser(ctx, alice.ID, "Alice", "BOB@example.com")
	assert.ErrorIs(t, err, domain.ErrDuplicateField)
}

func TestDeleteUser_Unknown(t *testing.T) {
	f := newFixture()
	err := f.svc.DeleteUser(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Empty(t, f.publisher.Events())
}

func TestGetUser_BlankID(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetUser(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	for range f.svc.ListUsers(ctx) {
		t.Fatal("expected an empty listing")
	}

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateUser(ctx, fmt.Sprintf("User %c", 'A'+i), fmt.Sprintf("u%d@example.com", i))
		require.NoError(t, err)
	}

	n := 0
	for user, err := range f.svc.ListUsers(ctx) {
		require.NoError(t, err)
		require.NotNil(t, user)
		n++
	}
	assert.Equal(t, 3, n)
}

func TestIDStabilityAcrossUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created, err := f.svc.CreateUser(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.svc.UpdateUser(ctx, created.ID, fmt.Sprintf("Alice %c", 'A'+i), "alice@example.com")
		require.NoError(t, err)
	}

	got, err := f.svc.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestConcurrentCreatesKeepUniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// five distinct emails, ten racers each
			_, _ = f.svc.CreateUser(ctx, letterName(i), fmt.Sprintf("user%d@example.com", i%5))
		}(i)
	}
	wg.Wait()

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	seen := map[string]bool{}
	for user, err := range f.svc.ListUsers(ctx) {
		require.NoError(t, err)
		assert.False(t, seen[user.Email], "duplicate email %s", user.Email)
		seen[user.Email] = true
	}
}

func TestConcurrentCreatesKeepUniquenessIgnoringCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	names := []string{"Alice", "Bruno", "Carla", "Dmitri"}
	cases := []func(string) string{strings.ToLower, strings.ToUpper, func(s string) string { return s }}

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := i % len(names)
			fold := cases[(i/len(names))%len(cases)]
			name := fold(names[g])
			email := fold(fmt.Sprintf("user%d@example.com", g))
			switch (i / 12) % 3 {
			case 1:
				// name collides, email is fresh
				email = fmt.Sprintf("solo%d@example.com", i)
			case 2:
				// email collides, name is fresh
				name = letterName(100 + i)
			}
			_, _ = f.svc.CreateUser(ctx, name, email)
		}(i)
	}
	wg.Wait()

	seenNames, emails := map[string]bool{}, map[string]bool{}
	for user, err := range f.svc.ListUsers(ctx) {
		require.NoError(t, err)
		name, email := strings.ToLower(user.Name), strings.ToLower(user.Email)
		assert.False(t, seenNames[name], "duplicate name %s", user.Name)
		assert.False(t, emails[email], "duplicate email %s", user.Email)
		seenNames[name], emails[email] = true, true
	}
	assert.GreaterOrEqual(t, len(emails), len(names))
}

func TestCreateAndUpdateLogMaskedEmail(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	repo := memory.NewMemoryUserRepository()
	svc := NewUserService(repo, NewUserValidator(repo), &recordingPublisher{}, nil, zap.New(core).Sugar())

	user, err := svc.CreateUser(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	_, err = svc.UpdateUser(ctx, user.ID, "Alice", "bob@example.com")
	require.NoError(t, err)

	created := logs.FilterMessage("user created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "a****@example.com", created[0].ContextMap()["email"])

	updated := logs.FilterMessage("user updated").All()
	require.Len(t, updated, 1)
	assert.Equal(t, "b**@example.com", updated[0].ContextMap()["email"])

	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(v), "alice@example.com")
		}
	}
}

func TestCreateUser_FanOutToSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.NewMemoryUserRepository()
	hub := notification.NewHub(notification.Options{}, nil)
	defer hub.Cleanup()
	svc := NewUserService(repo, NewUserValidator(repo), hub, nil, nil)

	createdOnly := hub.Subscribe(ctx, "created-only", []domain.NotificationType{domain.NotificationCreated})
	deletedOnly := hub.Subscribe(ctx, "deleted-only", []domain.NotificationType{domain.NotificationDeleted})
	all := hub.Subscribe(ctx, "all", nil)

	user, err := svc.CreateUser(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	for _, sub := range []*notification.Subscription{createdOnly, all} {
		select {
		case n := <-sub.Notifications():
			assert.Equal(t, domain.NotificationCreated, n.Type)
			assert.Equal(t, user.ID, n.User.ID)
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive the notification", sub.ClientID())
		}
		assert.Len(t, sub.Notifications(), 0, "exactly one notification")
	}
	assert.Len(t, deletedOnly.Notifications(), 0)
}

// letterName builds distinct letter-only names for i < 676.
func letterName(i int) string {
	return fmt.Sprintf("User %c%c", 'a'+i%26, 'a'+i/26)
}
