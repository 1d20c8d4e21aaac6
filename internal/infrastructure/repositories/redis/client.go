package redis

import (
	"context"
	"fmt"
	"time"

	"userhub/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ClientOptions configures NewRedisClient.
type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Prefix   string
	Retry    retry.Config
}

// NewRedisClient connects with pooling, pings with retry and brings the
// key schema up to date.
func NewRedisClient(ctx context.Context, opts ClientOptions, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	retryCfg := opts.Retry
	if logger != nil {
		retryCfg.Notify = func(err error, next time.Duration) {
			logger.Warnw("redis not ready", "address", opts.Address, "error", err, "next_try_in", next)
		}
	}

	err := retry.Retry(pingCtx, retryCfg, func() error {
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := Migrate(pingCtx, client, opts.Prefix, logger); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Redis",
			"address", opts.Address,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
		)
	}

	return client, nil
}

func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
