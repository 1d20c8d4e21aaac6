package grpc

import (
	"context"
	"errors"

	"userhub/internal/core/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// encodeError is the single place domain failures become gRPC statuses.
// Anything unrecognised is reported as Internal without its text.
func encodeError(err error) error {
	var verr *domain.ValidationError

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrUserNotFound):
		return status.Error(codes.NotFound, "user not found")
	case errors.As(err, &verr):
		if verr.IsDuplicate() {
			return status.Error(codes.AlreadyExists, verr.Message)
		}
		return status.Error(codes.InvalidArgument, verr.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, domain.ErrTransportFailure):
		return status.Error(codes.Aborted, "inbound stream failed before completion")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

// subscriptionError reports why the hub closed a subscription.
func subscriptionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrSubscriptionReplaced):
		return status.Error(codes.Aborted, "subscription replaced by a newer one with the same client id")
	case errors.Is(err, domain.ErrSubscriberTooSlow):
		return status.Error(codes.ResourceExhausted, "subscriber could not keep up and was dropped")
	default:
		return status.Error(codes.Unavailable, "subscription terminated")
	}
}
