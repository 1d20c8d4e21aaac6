package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userhub/internal/core/services"
	grpchandlers "userhub/internal/handlers/grpc"
	httphandlers "userhub/internal/handlers/http"
	"userhub/internal/infrastructure/middleware"
	"userhub/internal/infrastructure/monitoring"
	"userhub/internal/infrastructure/notification"
	"userhub/internal/infrastructure/reliability"
	"userhub/internal/infrastructure/repositories"
	"userhub/pkg/config"
	"userhub/pkg/logger"
	"userhub/pkg/tracing"
	"userhub/pkg/userpb"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var configPaths = []string{
	"configs/config.yaml",
	"/etc/userhub/config.yaml",
	"config.yaml",
}

func loadConfig(explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	// no file anywhere: defaults plus env overrides
	return config.Load(configPaths[0])
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	startTime := time.Now()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zap.NewExample().Sugar().Fatalw("failed to load configuration", "error", err)
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()
	contextLogger := logger.NewContextLogger(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "userhub",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := monitoring.NewPrometheusCollector(registry)

	repoFactory := repositories.NewRepositoryFactory(ctx, cfg, log)
	userRepo := repoFactory.CreateUserRepository()

	hub := notification.NewHub(notification.Options{
		BufferSize: cfg.Notifications.BufferSize,
		Policy:     notification.OverflowPolicy(cfg.Notifications.OverflowPolicy),
		Metrics:    collector,
	}, log.Named("hub"))

	var serviceOpts []services.Option
	if lock := repoFactory.WriteLock(); lock != nil {
		serviceOpts = append(serviceOpts, services.WithSharedWriteLock(lock))
	}
	userService := services.NewUserService(
		userRepo,
		services.NewUserValidator(userRepo),
		hub,
		collector,
		log.Named("users"),
		serviceOpts...,
	)

	// gRPC
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.MaxConcurrentStreams(cfg.GRPC.MaxConcurrentStreams),
		grpc.ConnectionTimeout(cfg.GRPC.ConnectionTimeout),
		grpc.ChainUnaryInterceptor(
			middleware.UnaryRecoveryInterceptor(log),
			middleware.UnaryServerInterceptor(contextLogger, collector),
		),
		grpc.ChainStreamInterceptor(
			middleware.StreamRecoveryInterceptor(log),
			middleware.StreamServerInterceptor(contextLogger, collector),
		),
	)
	userpb.RegisterUserServiceServer(grpcServer, grpchandlers.NewUserServer(userService, hub, log.Named("grpc")))

	grpcListener, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		log.Fatalw("failed to listen for gRPC", "address", cfg.GRPC.Address, "error", err)
	}

	gatewayConn, err := grpc.NewClient(cfg.GatewayDialTarget(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		log.Fatalw("failed to create gateway client", "target", cfg.GatewayDialTarget(), "error", err)
	}
	defer gatewayConn.Close()
	gatewayClient := userpb.NewUserServiceClient(gatewayConn)

	// health
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddStoreCheck(userRepo, 2*time.Second)
	healthChecker.AddPingCheck("store_backend", repoFactory.HealthCheck, 2*time.Second)
	if guarded, ok := userRepo.(*reliability.UserRepositoryWrapper); ok {
		healthChecker.AddCircuitBreakerCheck("store_circuit", guarded.CircuitBreakerStats)
	}

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggingMiddleware(contextLogger, collector),
		middleware.TracingMiddleware(),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)

	httphandlers.NewUserHandler(gatewayClient, log.Named("rest")).SetupRoutes(router)
	httphandlers.NewSubscriptionHandler(gatewayClient, httphandlers.WebSocketOptions{
		PingInterval: cfg.WebSocket.PingInterval,
		PongTimeout:  cfg.WebSocket.PongTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
	}, log.Named("ws")).SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      monitoring.StatusHealthy,
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"store":       repoFactory.Backend(),
			"subscribers": hub.SubscriberCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		result := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if result.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, result)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("starting gRPC server", "address", cfg.GRPC.Address)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Infow("starting HTTP server", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down userhub")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("error during HTTP shutdown", "error", err)
			_ = srv.Close()
		}

		// open subscription streams only end once the hub lets go of them
		hub.Cleanup()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			log.Warn("graceful gRPC stop timed out, forcing")
			grpcServer.Stop()
		}

		if err := repoFactory.Close(); err != nil {
			log.Errorw("error closing repositories", "error", err)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Errorw("error shutting down tracer provider", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalw("server failed", "error", err)
	}
	log.Info("userhub stopped")
}
