package repositories

import (
	"context"

	"userhub/internal/core/ports"
	"userhub/internal/infrastructure/reliability"
	"userhub/internal/infrastructure/repositories/memory"
	redisrepo "userhub/internal/infrastructure/repositories/redis"
	"userhub/pkg/circuitbreaker"
	"userhub/pkg/config"
	"userhub/pkg/distributed"
	"userhub/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory picks the user store backend, falling back to memory
// when Redis cannot be reached at startup.
type RepositoryFactory struct {
	cfg         *config.Config
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Store.Backend == config.StoreRedis {
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
			Retry:    RetryConfig(cfg),
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory store",
				"address", cfg.Redis.Address,
				"error", err,
			)
		} else {
			factory.useRedis = true
			factory.redisClient = client
		}
	}

	logger.Infow("user store selected", "backend", factory.Backend())
	return factory
}

func (f *RepositoryFactory) Backend() string {
	if f.useRedis {
		return config.StoreRedis
	}
	return config.StoreMemory
}

// CreateUserRepository returns the Redis store behind retries and a
// circuit breaker, or a plain in-memory store.
func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	if f.useRedis && f.redisClient != nil {
		return reliability.NewUserRepositoryWrapper(
			redisrepo.NewRedisUserRepository(f.redisClient, f.cfg.Redis.Prefix),
			RetryConfig(f.cfg),
			CircuitBreakerConfig(f.cfg),
			f.logger,
		)
	}
	return memory.NewMemoryUserRepository()
}

// WriteLock returns the cross-process writer lock for a shared Redis
// store, or nil when the store is process-local.
func (f *RepositoryFactory) WriteLock() ports.WriteLock {
	if !f.useRedis || f.redisClient == nil {
		return nil
	}
	return distributed.NewMutex(f.redisClient, f.cfg.Redis.Prefix+"lock:users", distributed.DefaultTTL)
}

func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

func RetryConfig(cfg *config.Config) retry.Config {
	rc := retry.DefaultConfig()
	rc.Enabled = cfg.Reliability.Retry.Enabled
	if cfg.Reliability.Retry.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.Reliability.Retry.MaxAttempts
	}
	if cfg.Reliability.Retry.InitialDelay > 0 {
		rc.InitialDelay = cfg.Reliability.Retry.InitialDelay
	}
	if cfg.Reliability.Retry.MaxDelay > 0 {
		rc.MaxDelay = cfg.Reliability.Retry.MaxDelay
	}
	return rc
}

func CircuitBreakerConfig(cfg *config.Config) circuitbreaker.Config {
	cb := circuitbreaker.DefaultConfig()
	if cfg.Reliability.CircuitBreaker.FailureThreshold > 0 {
		cb.FailureThreshold = cfg.Reliability.CircuitBreaker.FailureThreshold
	}
	if cfg.Reliability.CircuitBreaker.SuccessThreshold > 0 {
		cb.SuccessThreshold = cfg.Reliability.CircuitBreaker.SuccessThreshold
	}
	if cfg.Reliability.CircuitBreaker.Timeout > 0 {
		cb.Timeout = cfg.Reliability.CircuitBreaker.Timeout
	}
	return cb
}

