package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/pkg/tracing"
)

// CreateUsers drains src one request at a time, applying full create
// semantics to each. Per-item failures are collected in the result. A
// broken source or a cancelled context aborts the whole call with no
// result; users created before that point stay created.
func (s *userService) CreateUsers(ctx context.Context, src ports.CreateRequestSource) (*domain.BatchResult, error) {
	ctx, span := tracing.TraceBatch(ctx)
	defer span.End()

	result := domain.NewBatchResult()
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, s.abortBatch(ctx, result, fmt.Errorf("%w: %w", domain.ErrTransportFailure, err))
		}

		req, err := src.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, s.abortBatch(ctx, result, fmt.Errorf("%w: %w", domain.ErrTransportFailure, err))
		}

		s.ingest(ctx, n, req, result)
	}

	failed := len(result.Errors)
	s.metrics.RecordBatch(result.CreatedCount, failed)
	tracing.AddSpanAttributes(ctx,
		tracing.BatchCreatedKey.Int(result.CreatedCount),
		tracing.BatchFailedKey.Int(failed),
	)
	s.logger.Infow("batch completed", "created", result.CreatedCount, "failed", failed)
	return result, nil
}

func (s *userService) ingest(ctx context.Context, n int, req *domain.CreateUserRequest, result *domain.BatchResult) {
	if req == nil {
		req = &domain.CreateUserRequest{}
	}

	var user *domain.User
	unlock, err := s.lockWrites(ctx)
	if err == nil {
		user, err = s.createLocked(ctx, req.Name, req.Email)
		unlock()
	}

	s.metrics.RecordUserOperation("batch_create", outcomeOf(err))
	if err == nil {
		result.RecordCreated(user.ID)
		return
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		result.RecordFailure(fmt.Sprintf("request #%d: %s", n, verr.Message))
		return
	}

	s.logger.Errorw("batch item failed", "request", n, "error", err)
	result.RecordFailure(fmt.Sprintf("request #%d: internal error", n))
}

func (s *userService) abortBatch(ctx context.Context, partial *domain.BatchResult, err error) error {
	tracing.RecordError(ctx, err)
	s.logger.Warnw("batch aborted",
		"created_before_abort", partial.CreatedCount,
		"failed_before_abort", len(partial.Errors),
		"error", err,
	)
	return err
}
