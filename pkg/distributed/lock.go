package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL           = 10 * time.Second
	DefaultRetryInterval = 25 * time.Millisecond
	releaseTimeout       = 2 * time.Second
)

var ErrNotHeld = errors.New("lock is not held by this owner")

// only the holder's token may release or extend the key
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Mutex is a Redis-backed lock over a single key (SET NX PX plus a
// token). A held lock is extended at half its TTL until released.
type Mutex struct {
	client        redis.UniversalClient
	key           string
	ttl           time.Duration
	retryInterval time.Duration
}

func NewMutex(client redis.UniversalClient, key string, ttl time.Duration) *Mutex {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Mutex{
		client:        client,
		key:           key,
		ttl:           ttl,
		retryInterval: DefaultRetryInterval,
	}
}

func (m *Mutex) Key() string {
	return m.key
}

// Acquire blocks until the lock is taken or ctx ends.
func (m *Mutex) Acquire(ctx context.Context) (func(), error) {
	for {
		release, ok, err := m.TryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}

		timer := time.NewTimer(m.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire makes a single attempt.
func (m *Mutex) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", m.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go m.keepAlive(token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = m.release(ctx, token)
		})
	}
	return release, true, nil
}

func (m *Mutex) release(ctx context.Context, token string) error {
	n, err := releaseScript.Run(ctx, m.client, []string{m.key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", m.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (m *Mutex) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.ttl/2)
			n, err := extendScript.Run(ctx, m.client, []string{m.key}, token, m.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || n == 0 {
				// lost the key; the next holder owns it now
				return
			}
		}
	}
}

// IsLocked reports whether anyone currently holds the key.
func (m *Mutex) IsLocked(ctx context.Context) (bool, error) {
	n, err := m.client.Exists(ctx, m.key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
