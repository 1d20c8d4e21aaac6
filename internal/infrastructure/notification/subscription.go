package notification

import (
	"errors"
	"sync"
	"time"

	"userhub/internal/core/domain"
)

type SubscriptionState int

const (
	StateActive SubscriptionState = iota
	StateCancelled
	StateFailed
	StateReplaced
)

func (s SubscriptionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	case StateReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

var errSubscriptionClosed = errors.New("subscription closed")

// Subscription is one registered delivery sink. The channel returned by
// Notifications is closed once the subscription leaves the active state;
// notifications already buffered stay readable.
type Subscription struct {
	clientID  string
	filter    map[domain.NotificationType]struct{}
	createdAt time.Time
	hub       *Hub

	mu    sync.Mutex
	ch    chan domain.Notification
	state SubscriptionState
	cause error
	done  chan struct{}
}

func newSubscription(hub *Hub, clientID string, types []domain.NotificationType, buffer int) *Subscription {
	var filter map[domain.NotificationType]struct{}
	if len(types) > 0 {
		filter = make(map[domain.NotificationType]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}

	return &Subscription{
		clientID:  clientID,
		filter:    filter,
		createdAt: hub.now(),
		hub:       hub,
		ch:        make(chan domain.Notification, buffer),
		done:      make(chan struct{}),
	}
}

func (s *Subscription) ClientID() string { return s.clientID }

func (s *Subscription) Notifications() <-chan domain.Notification { return s.ch }

// Done is closed when the subscription terminates.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err reports why the subscription ended. It is nil while active and for
// plain cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Wants reports whether the subscription's type filter accepts t. An empty
// filter accepts everything.
func (s *Subscription) Wants(t domain.NotificationType) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[t]
	return ok
}

// Cancel deregisters the subscription from its hub.
func (s *Subscription) Cancel() {
	s.hub.Release(s, nil)
}

// deliver never blocks. With dropOldest a full buffer loses its head
// instead of failing the subscriber.
func (s *Subscription) deliver(n domain.Notification, dropOldest bool) (dropped bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false, errSubscriptionClosed
	}

	select {
	case s.ch <- n:
		return false, nil
	default:
	}

	if !dropOldest {
		return false, domain.ErrSubscriberTooSlow
	}

	// Only the consumer can race us here and it only frees space.
	select {
	case <-s.ch:
		dropped = true
	default:
	}
	select {
	case s.ch <- n:
		return dropped, nil
	default:
		return dropped, domain.ErrSubscriberTooSlow
	}
}

// close moves the subscription to a terminal state. Only the first call
// has any effect.
func (s *Subscription) close(state SubscriptionState, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}
	s.state = state
	s.cause = cause
	close(s.ch)
	close(s.done)
	return true
}
