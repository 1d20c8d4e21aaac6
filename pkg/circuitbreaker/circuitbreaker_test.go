package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*CircuitBreaker, *manualClock) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(cfg)
	cb.now = clock.Now
	cb.stateChangeTime = clock.Now()
	return cb, clock
}

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestCircuitBreaker_ClosedPassesErrorsThrough(t *testing.T) {
	cb := New(DefaultConfig())
	ctx := context.Background()

	require.NoError(t, cb.Execute(ctx, succeed))
	err := cb.Execute(ctx, fail)
	assert.Equal(t, errBackend, err)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 1, cb.GetStats().FailureCount)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second, MaxRequestsHalfOpen: 3})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.GetState())

	clock.Advance(2 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.GetState())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Second)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 5, Timeout: time.Second, MaxRequestsHalfOpen: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Second)

	require.NoError(t, cb.Execute(ctx, succeed))
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestCircuitBreaker_IsFailureFiltersErrors(t *testing.T) {
	errNotFound := errors.New("not found")
	cb, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNotFound) },
	})

	err := cb.Execute(context.Background(), func() error { return errNotFound })
	assert.ErrorIs(t, err, errNotFound)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Minute})

	changes := make(chan [2]State, 1)
	cb.OnStateChange(func(from, to State) {
		changes <- [2]State{from, to}
	})

	_ = cb.Execute(context.Background(), fail)

	select {
	case change := <-changes:
		assert.Equal(t, [2]State{StateClosed, StateOpen}, change)
	case <-time.After(time.Second):
		t.Fatal("state change callback not invoked")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1, Timeout: time.Minute})
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(context.Background(), succeed))
}

func TestCall_ReturnsResult(t *testing.T) {
	cb := New(DefaultConfig())
	got, err := Call(context.Background(), cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCall_CancelledContext(t *testing.T) {
	cb := New(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Call(ctx, cb, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := New(Config{FailureThreshold: 1000, Timeout: time.Minute})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(context.Background(), fail)
			} else {
				_ = cb.Execute(context.Background(), succeed)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, StateClosed, cb.GetState())
}
