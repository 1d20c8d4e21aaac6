package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"userhub/pkg/errors"
	"userhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type recordedCall struct {
	method string
	key    string
	status int
}

type fakeMetrics struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (m *fakeMetrics) RecordHTTPRequest(method, route string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{method: method, key: route, status: status})
}

func (m *fakeMetrics) RecordRPC(method, code string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{method: method, key: code})
}

func (m *fakeMetrics) all() []recordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedCall(nil), m.calls...)
}

func TestErrorHandlerMiddleware_RendersAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/users/:id", func(c *gin.Context) {
		_ = c.Error(errors.NewNotFoundError("user").WithContext("id", c.Param("id")))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"NOT_FOUND","message":"user not found","details":{"id":"42"}}`, w.Body.String())
}

func TestErrorHandlerMiddleware_HidesUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(stderrors.New("redis: connection refused"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop().Sugar()))
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRequestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	metrics := &fakeMetrics{}

	var seenID string
	router := gin.New()
	router.Use(RequestLoggingMiddleware(logger.NewContextLogger(zap.New(core)), metrics))
	router.GET("/api/v1/users/:id", func(c *gin.Context) {
		seenID = logger.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/abc", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-7", seenID)
	assert.Equal(t, "req-7", w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/v1/users/:id", fields["path"])
	assert.Equal(t, "req-7", fields["request_id"])

	assert.Equal(t, []recordedCall{{method: http.MethodGet, key: "/api/v1/users/:id", status: http.StatusNoContent}}, metrics.all())
}

func TestRequestLoggingMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLoggingMiddleware(logger.NewContextLogger(zap.NewNop()), nil))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestUnaryServerInterceptor_LogsAndMeasures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := &fakeMetrics{}
	interceptor := UnaryServerInterceptor(logger.NewContextLogger(zap.New(core)), metrics)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "rpc-1"))
	info := &grpc.UnaryServerInfo{FullMethod: "/userhub.v1.UserService/GetUser"}

	var seenID string
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seenID = logger.RequestID(ctx)
		return nil, status.Error(codes.NotFound, "user not found")
	})

	require.Error(t, err)
	assert.Equal(t, "rpc-1", seenID)
	assert.Equal(t, []recordedCall{{method: info.FullMethod, key: "NotFound"}}, metrics.all())
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "rpc_failed", entries[0].Message)
}

type stubServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubServerStream) Context() context.Context { return s.ctx }

func TestStreamServerInterceptor_PropagatesRequestID(t *testing.T) {
	metrics := &fakeMetrics{}
	interceptor := StreamServerInterceptor(logger.NewContextLogger(zap.NewNop()), metrics)
	info := &grpc.StreamServerInfo{FullMethod: "/userhub.v1.UserService/ListUsers", IsServerStream: true}

	var seenID string
	err := interceptor(nil, &stubServerStream{ctx: context.Background()}, info, func(srv interface{}, ss grpc.ServerStream) error {
		seenID = logger.RequestID(ss.Context())
		return nil
	})

	require.NoError(t, err)
	assert.NotEmpty(t, seenID)
	assert.Equal(t, []recordedCall{{method: info.FullMethod, key: "OK"}}, metrics.all())
}

func TestRecoveryInterceptors(t *testing.T) {
	log := zap.NewNop().Sugar()

	_, err := UnaryRecoveryInterceptor(log)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/m"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			panic("boom")
		})
	assert.Equal(t, codes.Internal, status.Code(err))

	err = StreamRecoveryInterceptor(log)(nil, &stubServerStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: "/s"},
		func(srv interface{}, ss grpc.ServerStream) error {
			panic("boom")
		})
	assert.Equal(t, codes.Internal, status.Code(err))
}
