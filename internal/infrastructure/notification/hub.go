package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"userhub/internal/core/domain"
	"userhub/pkg/utils"

	"go.uber.org/zap"
)

type OverflowPolicy string

const (
	// DropSubscriber unsubscribes a consumer whose buffer is full.
	DropSubscriber OverflowPolicy = "drop_subscriber"
	// DropOldest discards the oldest buffered notification to make room.
	DropOldest OverflowPolicy = "drop_oldest"
)

const DefaultBufferSize = 64

// Metrics receives hub activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	SubscriptionOpened()
	SubscriptionClosed(state string)
	NotificationDelivered(t domain.NotificationType)
	NotificationDropped(t domain.NotificationType)
}

type nopMetrics struct{}

func (nopMetrics) SubscriptionOpened()                          {}
func (nopMetrics) SubscriptionClosed(string)                    {}
func (nopMetrics) NotificationDelivered(domain.NotificationType) {}
func (nopMetrics) NotificationDropped(domain.NotificationType)   {}

type Options struct {
	BufferSize int
	Policy     OverflowPolicy
	Metrics    Metrics
	Now        func() time.Time
}

// Hub fans user lifecycle notifications out to every registered
// subscriber. Broadcasts never wait on a subscriber.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription

	// publishMu gives every subscriber the same global broadcast order.
	publishMu sync.Mutex

	bufferSize int
	policy     OverflowPolicy
	metrics    Metrics
	now        func() time.Time
	logger     *zap.SugaredLogger
}

func NewHub(opts Options, logger *zap.SugaredLogger) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Policy == "" {
		opts.Policy = DropSubscriber
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: opts.BufferSize,
		policy:     opts.Policy,
		metrics:    opts.Metrics,
		now:        opts.Now,
		logger:     logger,
	}
}

// Subscribe registers a sink for clientID, generating an id when blank.
// An active subscription under the same id is closed as replaced before
// the new one is registered. The subscription is released when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, clientID string, types []domain.NotificationType) *Subscription {
	if clientID == "" {
		clientID = utils.GenerateClientID()
	}

	sub := newSubscription(h, clientID, types, h.bufferSize)

	h.mu.Lock()
	old, replacing := h.subs[clientID]
	if replacing {
		h.closeSubscription(old, StateReplaced, domain.ErrSubscriptionReplaced)
	}
	h.subs[clientID] = sub
	h.mu.Unlock()

	h.metrics.SubscriptionOpened()
	h.logger.Infow("subscriber registered",
		"client_id", clientID,
		"types", types,
		"replaced", replacing,
	)

	go func() {
		select {
		case <-ctx.Done():
			h.Release(sub, nil)
		case <-sub.done:
		}
	}()

	return sub
}

// Unsubscribe removes whatever subscription is registered for clientID.
// It is a no-op for unknown ids.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	sub, ok := h.subs[clientID]
	if ok {
		delete(h.subs, clientID)
	}
	h.mu.Unlock()

	if ok {
		h.closeSubscription(sub, StateCancelled, nil)
	}
}

// Release removes this exact subscription. A newer registration under the
// same client id is left alone. A nil cause means the consumer went away;
// anything else marks the subscription failed.
func (h *Hub) Release(sub *Subscription, cause error) {
	h.mu.Lock()
	if current, ok := h.subs[sub.clientID]; ok && current == sub {
		delete(h.subs, sub.clientID)
	}
	h.mu.Unlock()

	state := StateCancelled
	switch {
	case cause == nil:
	case errors.Is(cause, domain.ErrSubscriptionReplaced):
		state = StateReplaced
	default:
		state = StateFailed
	}
	h.closeSubscription(sub, state, cause)
}

func (h *Hub) closeSubscription(sub *Subscription, state SubscriptionState, cause error) {
	if !sub.close(state, cause) {
		return
	}
	h.metrics.SubscriptionClosed(state.String())
	h.logger.Infow("subscriber removed",
		"client_id", sub.clientID,
		"state", state.String(),
		"error", cause,
	)
}

func (h *Hub) BroadcastCreated(user *domain.User) {
	h.Broadcast(domain.NewCreatedNotification(user, h.now()))
}

func (h *Hub) BroadcastUpdated(user *domain.User) {
	h.Broadcast(domain.NewUpdatedNotification(user, h.now()))
}

func (h *Hub) BroadcastDeleted(id domain.UserID) {
	h.Broadcast(domain.NewDeletedNotification(id, h.now()))
}

// Broadcast delivers n to a snapshot of the registry. A subscriber that
// cannot take the notification is dropped; the others are unaffected.
func (h *Hub) Broadcast(n domain.Notification) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	for _, sub := range h.snapshot() {
		if !sub.Wants(n.Type) {
			continue
		}

		dropped, err := sub.deliver(n, h.policy == DropOldest)
		if dropped {
			h.metrics.NotificationDropped(n.Type)
		}
		if err == nil {
			h.metrics.NotificationDelivered(n.Type)
			continue
		}

		if errors.Is(err, errSubscriptionClosed) {
			continue
		}
		h.metrics.NotificationDropped(n.Type)
		h.logger.Warnw("dropping subscriber",
			"client_id", sub.clientID,
			"type", n.Type,
			"error", err,
		)
		h.Release(sub, err)
	}
}

func (h *Hub) snapshot() []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) IsSubscribed(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[clientID]
	return ok
}

// Cleanup closes and deregisters every subscription.
func (h *Hub) Cleanup() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		h.closeSubscription(sub, StateCancelled, nil)
	}
	h.logger.Infow("notification hub cleaned up", "closed", len(subs))
}
