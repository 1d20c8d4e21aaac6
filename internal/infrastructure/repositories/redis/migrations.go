package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"userhub/internal/core/domain"
	"userhub/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 1

type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, client *redis.Client, keys keyspace) error
}

// Migrate runs every migration newer than the stored schema version.
func Migrate(ctx context.Context, client *redis.Client, prefix string, logger *zap.SugaredLogger) error {
	keys := keyspace{prefix: prefix}

	currentVersion, err := getSchemaVersion(ctx, client, keys)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("schema is up to date", "version", currentVersion)
		}
		return nil
	}

	for _, migration := range migrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version, "name", migration.Name)
		}
		if err := migration.Up(ctx, client, keys); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := client.Set(ctx, keys.schemaVersion(), migration.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client, keys keyspace) (int, error) {
	val, err := client.Get(ctx, keys.schemaVersion()).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "rebuild uniqueness indexes",
			Up:      rebuildIndexes,
		},
	}
}

// rebuildIndexes regenerates the email and name lookup hashes from the
// stored user documents.
func rebuildIndexes(ctx context.Context, client *redis.Client, keys keyspace) error {
	ids, err := client.SMembers(ctx, keys.ids()).Result()
	if err != nil {
		return err
	}

	pipe := client.TxPipeline()
	pipe.Del(ctx, keys.emailIndex(), keys.nameIndex())
	for _, id := range ids {
		raw, err := client.Get(ctx, keys.user(domain.UserID(id))).Bytes()
		if errors.Is(err, redis.Nil) {
			pipe.SRem(ctx, keys.ids(), id)
			continue
		}
		if err != nil {
			return err
		}
		var user domain.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
		pipe.HSet(ctx, keys.emailIndex(), utils.FoldKey(user.Email), id)
		pipe.HSet(ctx, keys.nameIndex(), utils.FoldKey(user.Name), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}
