package ports

import (
	"context"
	"iter"

	"userhub/internal/core/domain"
)

type UserService interface {
	CreateUser(ctx context.Context, name, email string) (*domain.User, error)
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	UpdateUser(ctx context.Context, id domain.UserID, name, email string) (*domain.User, error)
	DeleteUser(ctx context.Context, id domain.UserID) error
	ListUsers(ctx context.Context) iter.Seq2[*domain.User, error]
	CreateUsers(ctx context.Context, src CreateRequestSource) (*domain.BatchResult, error)
}

// Validator runs business rules before any store mutation.
type Validator interface {
	ValidateCreate(ctx context.Context, name, email string) error
	ValidateUpdate(ctx context.Context, id domain.UserID, name, email string) error
}

// CreateRequestSource yields inbound create requests. Recv returns io.EOF
// once the sender has finished; any other error is a transport failure.
type CreateRequestSource interface {
	Recv() (*domain.CreateUserRequest, error)
}

// NotificationPublisher fans lifecycle events out to subscribers. The
// calls never block on subscriber delivery.
type NotificationPublisher interface {
	BroadcastCreated(user *domain.User)
	BroadcastUpdated(user *domain.User)
	BroadcastDeleted(id domain.UserID)
}

// MetricsRecorder receives opaque operation outcomes.
type MetricsRecorder interface {
	RecordUserOperation(op, outcome string)
	RecordBatch(created, failed int)
}
