package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"userhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrate_RebuildsIndexesAndSetsVersion(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	keys := keyspace{prefix: testPrefix}

	user := domain.User{ID: "u-1", Name: "Alice", Email: "Alice@Example.com", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	raw, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, keys.user(user.ID), raw, 0).Err())
	require.NoError(t, client.SAdd(ctx, keys.ids(), string(user.ID), "ghost").Err())

	require.NoError(t, Migrate(ctx, client, testPrefix, zap.NewNop().Sugar()))

	version, err := client.Get(ctx, keys.schemaVersion()).Int()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	owner, err := client.HGet(ctx, keys.emailIndex(), "alice@example.com").Result()
	require.NoError(t, err)
	assert.Equal(t, "u-1", owner)

	isMember, err := client.SIsMember(ctx, keys.ids(), "ghost").Result()
	require.NoError(t, err)
	assert.False(t, isMember)

	// second run is a no-op
	require.NoError(t, Migrate(ctx, client, testPrefix, nil))
}
