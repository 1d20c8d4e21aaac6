package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const (
	maxTxAttempts = 5
	scanBatchSize = 100
)

// RedisUserRepository keeps one JSON document per user plus an id set and
// case-folded email/name indexes. Writes are optimistic transactions on the
// user key.
type RedisUserRepository struct {
	client *redis.Client
	keys   keyspace
	now    func() time.Time
}

func NewRedisUserRepository(client *redis.Client, prefix string) ports.UserRepository {
	return &RedisUserRepository{
		client: client,
		keys:   keyspace{prefix: prefix},
		now:    time.Now,
	}
}

func (r *RedisUserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	stored := user.Clone()
	if stored.ID == "" {
		stored.ID = domain.UserID(utils.GenerateUserID())
	}

	err := r.transact(ctx, stored.ID, func(tx *redis.Tx, existing *domain.User) error {
		now := r.now()
		if existing != nil {
			stored.CreatedAt = existing.CreatedAt
			stored.UpdatedAt = later(existing.UpdatedAt, now)
		} else {
			stored.CreatedAt = now
			stored.UpdatedAt = now
		}
		return r.write(ctx, tx, existing, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (r *RedisUserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	user, err := r.load(ctx, r.client, id)
	if err != nil {
		return nil, false, err
	}
	return user, user != nil, nil
}

// FindAll snapshots the id set, then fetches documents in batches. Users
// deleted after the snapshot are skipped.
func (r *RedisUserRepository) FindAll(ctx context.Context) iter.Seq2[*domain.User, error] {
	return func(yield func(*domain.User, error) bool) {
		ids, err := r.client.SMembers(ctx, r.keys.ids()).Result()
		if err != nil {
			yield(nil, fmt.Errorf("failed to list user ids: %w", err))
			return
		}

		for start := 0; start < len(ids); start += scanBatchSize {
			end := min(start+scanBatchSize, len(ids))
			keys := make([]string, 0, end-start)
			for _, id := range ids[start:end] {
				keys = append(keys, r.keys.user(domain.UserID(id)))
			}

			values, err := r.client.MGet(ctx, keys...).Result()
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch users: %w", err))
				return
			}

			for _, value := range values {
				raw, ok := value.(string)
				if !ok {
					continue
				}
				user, err := decodeUser([]byte(raw))
				if !yield(user, err) || err != nil {
					return
				}
			}
		}
	}
}

func (r *RedisUserRepository) Update(ctx context.Context, id domain.UserID, patch domain.UserPatch) (*domain.User, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	var updated *domain.User
	err := r.transact(ctx, id, func(tx *redis.Tx, existing *domain.User) error {
		if existing == nil {
			updated = nil
			return nil
		}
		updated = existing.Clone()
		updated.Name = patch.Name
		updated.Email = patch.Email
		updated.UpdatedAt = later(existing.UpdatedAt, r.now())
		return r.write(ctx, tx, existing, updated)
	})
	if err != nil {
		return nil, false, err
	}
	if updated == nil {
		return nil, false, nil
	}
	return updated.Clone(), true, nil
}

func (r *RedisUserRepository) Delete(ctx context.Context, id domain.UserID) (bool, error) {
	if id == "" {
		return false, nil
	}

	removed := false
	err := r.transact(ctx, id, func(tx *redis.Tx, existing *domain.User) error {
		if existing == nil {
			removed = false
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.keys.user(id))
			pipe.SRem(ctx, r.keys.ids(), string(id))
			r.unindex(ctx, pipe, existing)
			return nil
		})
		removed = err == nil
		return err
	})
	return removed, err
}

func (r *RedisUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.indexed(ctx, r.keys.emailIndex(), email, "")
}

func (r *RedisUserRepository) ExistsByEmailExcludingID(ctx context.Context, email string, excludeID domain.UserID) (bool, error) {
	return r.indexed(ctx, r.keys.emailIndex(), email, excludeID)
}

func (r *RedisUserRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.indexed(ctx, r.keys.nameIndex(), name, "")
}

func (r *RedisUserRepository) ExistsByNameExcludingID(ctx context.Context, name string, excludeID domain.UserID) (bool, error) {
	return r.indexed(ctx, r.keys.nameIndex(), name, excludeID)
}

func (r *RedisUserRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.keys.ids()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return int(n), nil
}

func (r *RedisUserRepository) Clear(ctx context.Context) error {
	ids, err := r.client.SMembers(ctx, r.keys.ids()).Result()
	if err != nil {
		return fmt.Errorf("failed to list user ids: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, r.keys.user(domain.UserID(id)))
		}
		pipe.Del(ctx, r.keys.ids(), r.keys.emailIndex(), r.keys.nameIndex())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	return nil
}

// transact runs fn inside WATCH on the user key, retrying when a concurrent
// writer touches it first.
func (r *RedisUserRepository) transact(ctx context.Context, id domain.UserID, fn func(tx *redis.Tx, existing *domain.User) error) error {
	key := r.keys.user(id)
	txf := func(tx *redis.Tx) error {
		existing, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		return fn(tx, existing)
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis transaction on %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("redis transaction on %s: %w", key, redis.TxFailedErr)
}

func (r *RedisUserRepository) write(ctx context.Context, tx *redis.Tx, existing, next *domain.User) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.user(next.ID), data, 0)
		pipe.SAdd(ctx, r.keys.ids(), string(next.ID))
		if existing != nil {
			r.unindex(ctx, pipe, existing)
		}
		pipe.HSet(ctx, r.keys.emailIndex(), utils.FoldKey(next.Email), string(next.ID))
		pipe.HSet(ctx, r.keys.nameIndex(), utils.FoldKey(next.Name), string(next.ID))
		return nil
	})
	return err
}

// unindex drops index entries only while they still point at the user.
func (r *RedisUserRepository) unindex(ctx context.Context, pipe redis.Pipeliner, user *domain.User) {
	for _, entry := range []struct{ index, value string }{
		{r.keys.emailIndex(), user.Email},
		{r.keys.nameIndex(), user.Name},
	} {
		owner, err := r.client.HGet(ctx, entry.index, utils.FoldKey(entry.value)).Result()
		if err == nil && owner == string(user.ID) {
			pipe.HDel(ctx, entry.index, utils.FoldKey(entry.value))
		}
	}
}

func (r *RedisUserRepository) indexed(ctx context.Context, index, value string, excludeID domain.UserID) (bool, error) {
	if value == "" {
		return false, nil
	}
	owner, err := r.client.HGet(ctx, index, utils.FoldKey(value)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query index: %w", err)
	}
	return domain.UserID(owner) != excludeID, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisUserRepository) load(ctx context.Context, c getter, id domain.UserID) (*domain.User, error) {
	raw, err := c.Get(ctx, r.keys.user(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Redis: %w", err)
	}
	return decodeUser(raw)
}

func decodeUser(raw []byte) (*domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func later(prev, now time.Time) time.Time {
	if now.Before(prev) {
		return prev
	}
	return now
}
