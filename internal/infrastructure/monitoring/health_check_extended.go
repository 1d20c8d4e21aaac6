package monitoring

import (
	"context"
	"fmt"
	"time"

	"userhub/internal/core/ports"
	"userhub/pkg/circuitbreaker"
)

// AddStoreCheck verifies the user store answers a count query.
func (h *HealthChecker) AddStoreCheck(repo ports.UserRepository, timeout time.Duration) {
	h.AddCheck("user_store", func(ctx context.Context) error {
		if _, err := repo.Count(ctx); err != nil {
			return fmt.Errorf("user store: %w", err)
		}
		return nil
	}, timeout)
}

// AddPingCheck registers a dependency probe such as the Redis ping exposed
// by the repository factory.
func (h *HealthChecker) AddPingCheck(name string, ping func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck(name, ping, timeout)
}

// AddCircuitBreakerCheck reports the store unready while its breaker is open.
func (h *HealthChecker) AddCircuitBreakerCheck(name string, stats func() circuitbreaker.Stats) {
	h.AddCheck(name, func(context.Context) error {
		s := stats()
		if s.State == circuitbreaker.StateOpen {
			return fmt.Errorf("circuit %s after %d failures", s.State, s.FailureCount)
		}
		return nil
	}, time.Second)
}
