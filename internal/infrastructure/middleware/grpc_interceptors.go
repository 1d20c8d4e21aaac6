package middleware

import (
	"context"
	"time"

	"userhub/pkg/logger"
	"userhub/pkg/utils"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// RPCMetrics receives one call per finished RPC.
type RPCMetrics interface {
	RecordRPC(method, code string, d time.Duration)
}

func requestContext(ctx context.Context) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDMetadataKey); len(ids) > 0 && ids[0] != "" {
			return logger.WithRequestID(ctx, ids[0])
		}
	}
	return logger.WithRequestID(ctx, utils.GenerateRequestID())
}

// UnaryServerInterceptor logs and measures unary calls.
func UnaryServerInterceptor(cl *logger.ContextLogger, m RPCMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = requestContext(ctx)
		start := time.Now()

		resp, err := handler(ctx, req)

		observeRPC(ctx, cl, m, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor logs and measures streaming calls once the
// stream ends.
func StreamServerInterceptor(cl *logger.ContextLogger, m RPCMetrics) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := requestContext(ss.Context())
		start := time.Now()

		err := handler(srv, &contextStream{ServerStream: ss, ctx: ctx})

		observeRPC(ctx, cl, m, info.FullMethod, start, err)
		return err
	}
}

func observeRPC(ctx context.Context, cl *logger.ContextLogger, m RPCMetrics, method string, start time.Time, err error) {
	elapsed := time.Since(start)
	code := status.Code(err).String()
	cl.LogRPC(ctx, method, code, elapsed.Milliseconds(), err)
	if m != nil {
		m.RecordRPC(method, code, elapsed)
	}
}

// UnaryRecoveryInterceptor turns a handler panic into codes.Internal.
func UnaryRecoveryInterceptor(log *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("panic in rpc handler", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func StreamRecoveryInterceptor(log *zap.SugaredLogger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("panic in stream handler", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(srv, ss)
	}
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}
