package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/internal/infrastructure/notification"
	"userhub/pkg/tracing"
	"userhub/pkg/userpb"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// UserServer adapts the user service and notification hub to the
// userhub.v1.UserService gRPC contract.
type UserServer struct {
	userpb.UnimplementedUserServiceServer

	svc    ports.UserService
	hub    *notification.Hub
	logger *zap.SugaredLogger
}

func NewUserServer(svc ports.UserService, hub *notification.Hub, logger *zap.SugaredLogger) *UserServer {
	return &UserServer{
		svc:    svc,
		hub:    hub,
		logger: logger,
	}
}

func (s *UserServer) CreateUser(ctx context.Context, req *userpb.CreateUserRequest) (*userpb.User, error) {
	user, err := s.svc.CreateUser(ctx, req.GetName(), req.GetEmail())
	if err != nil {
		return nil, encodeError(err)
	}
	return toProtoUser(user), nil
}

func (s *UserServer) GetUser(ctx context.Context, req *userpb.GetUserRequest) (*userpb.User, error) {
	user, err := s.svc.GetUser(ctx, domain.UserID(req.GetId()))
	if err != nil {
		return nil, encodeError(err)
	}
	return toProtoUser(user), nil
}

func (s *UserServer) UpdateUser(ctx context.Context, req *userpb.UpdateUserRequest) (*userpb.User, error) {
	user, err := s.svc.UpdateUser(ctx, domain.UserID(req.GetId()), req.GetName(), req.GetEmail())
	if err != nil {
		return nil, encodeError(err)
	}
	return toProtoUser(user), nil
}

func (s *UserServer) DeleteUser(ctx context.Context, req *userpb.DeleteUserRequest) (*userpb.DeleteUserResponse, error) {
	if err := s.svc.DeleteUser(ctx, domain.UserID(req.GetId())); err != nil {
		return nil, encodeError(err)
	}
	return &userpb.DeleteUserResponse{
		Success: true,
		Message: fmt.Sprintf("User %s deleted successfully", req.GetId()),
	}, nil
}

func (s *UserServer) ListUsers(_ *userpb.ListUsersRequest, stream grpc.ServerStreamingServer[userpb.User]) error {
	for user, err := range s.svc.ListUsers(stream.Context()) {
		if err != nil {
			return encodeError(err)
		}
		if err := stream.Send(toProtoUser(user)); err != nil {
			return err
		}
	}
	return nil
}

// streamSource feeds a client stream into the batch pipeline.
type streamSource struct {
	stream grpc.ClientStreamingServer[userpb.CreateUserRequest, userpb.BatchCreateResult]
}

func (s streamSource) Recv() (*domain.CreateUserRequest, error) {
	req, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	return &domain.CreateUserRequest{Name: req.GetName(), Email: req.GetEmail()}, nil
}

func (s *UserServer) CreateUsers(stream grpc.ClientStreamingServer[userpb.CreateUserRequest, userpb.BatchCreateResult]) error {
	ctx := stream.Context()

	result, err := s.svc.CreateUsers(ctx, streamSource{stream})
	if err != nil {
		// a dropped client usually shows up as a Recv failure; report the
		// context cause when there is one
		if ctxErr := ctx.Err(); ctxErr != nil {
			return encodeError(ctxErr)
		}
		return encodeError(err)
	}
	return stream.SendAndClose(toProtoBatchResult(result))
}

// SubscribeToUserUpdates registers the caller with the hub using the first
// request on the stream. Later requests are read and ignored. The call ends
// when the client cancels, when the hub drops the subscriber, or when a
// send fails.
func (s *UserServer) SubscribeToUserUpdates(stream grpc.BidiStreamingServer[userpb.SubscribeRequest, userpb.UserNotification]) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	first, err := stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	types, err := parseNotificationTypes(first.GetNotificationTypes())
	if err != nil {
		return encodeError(err)
	}

	sub := s.hub.Subscribe(ctx, first.GetClientId(), types)
	ctx, span := tracing.TraceSubscription(ctx, sub.ClientID())
	defer span.End()

	go func() {
		for {
			if _, err := stream.Recv(); err != nil {
				// half-close keeps the subscription alive
				if !errors.Is(err, io.EOF) {
					cancel()
				}
				return
			}
		}
	}()

	for n := range sub.Notifications() {
		if err := stream.Send(toProtoNotification(n)); err != nil {
			s.hub.Release(sub, err)
			tracing.RecordError(ctx, err)
			return err
		}
	}

	tracing.AddSpanAttributes(ctx, tracing.OutcomeKey.String(sub.State().String()))
	if sub.State() == notification.StateCancelled {
		return nil
	}
	return subscriptionError(sub.Err())
}
