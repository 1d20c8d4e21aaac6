package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	OverflowDropSubscriber = "drop_subscriber"
	OverflowDropOldest     = "drop_oldest"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	GRPC struct {
		Address              string        `yaml:"address"`
		MaxConcurrentStreams uint32        `yaml:"max_concurrent_streams"`
		ConnectionTimeout    time.Duration `yaml:"connection_timeout"`
		// GatewayTarget is the address the REST façade dials. Empty means
		// the local gRPC listener.
		GatewayTarget string `yaml:"gateway_target"`
	} `yaml:"grpc"`

	Notifications struct {
		BufferSize     int    `yaml:"buffer_size"`
		OverflowPolicy string `yaml:"overflow_policy"`
	} `yaml:"notifications"`

	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Reliability struct {
		Retry struct {
			Enabled      bool          `yaml:"enabled"`
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
		} `yaml:"retry"`
		CircuitBreaker struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			Timeout          time.Duration `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	WebSocket struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"websocket"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// gRPC
	if c.GRPC.Address == "" {
		return fmt.Errorf("grpc.address must not be empty")
	}
	if c.GRPC.ConnectionTimeout <= 0 {
		return fmt.Errorf("grpc.connection_timeout must be > 0")
	}

	// Notifications
	if c.Notifications.BufferSize <= 0 {
		return fmt.Errorf("notifications.buffer_size must be > 0")
	}
	switch c.Notifications.OverflowPolicy {
	case OverflowDropSubscriber, OverflowDropOldest:
	default:
		return fmt.Errorf("notifications.overflow_policy must be %q or %q", OverflowDropSubscriber, OverflowDropOldest)
	}

	// Store
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when store.backend=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when store.backend=redis")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q", StoreMemory, StoreRedis)
	}

	// Reliability
	if c.Reliability.Retry.Enabled {
		if c.Reliability.Retry.MaxAttempts < 0 {
			return fmt.Errorf("reliability.retry.max_attempts must be >= 0")
		}
		if c.Reliability.Retry.InitialDelay <= 0 {
			return fmt.Errorf("reliability.retry.initial_delay must be > 0")
		}
	}
	if c.Reliability.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("reliability.circuit_breaker.failure_threshold must be > 0")
	}

	// WebSocket
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket.ping_interval must be > 0")
	}
	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket.pong_timeout must be greater than websocket.ping_interval")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0,1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be \"json\" or \"console\"")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.GRPC.Address = ":9090"
	cfg.GRPC.MaxConcurrentStreams = 1000
	cfg.GRPC.ConnectionTimeout = 5 * time.Second

	cfg.Notifications.BufferSize = 64
	cfg.Notifications.OverflowPolicy = OverflowDropSubscriber

	cfg.Store.Backend = StoreMemory

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.Prefix = "userhub:"

	cfg.Reliability.Retry.Enabled = true
	cfg.Reliability.Retry.MaxAttempts = 3
	cfg.Reliability.Retry.InitialDelay = 50 * time.Millisecond
	cfg.Reliability.Retry.MaxDelay = time.Second
	cfg.Reliability.CircuitBreaker.FailureThreshold = 5
	cfg.Reliability.CircuitBreaker.SuccessThreshold = 2
	cfg.Reliability.CircuitBreaker.Timeout = 30 * time.Second

	cfg.WebSocket.PingInterval = 30 * time.Second
	cfg.WebSocket.PongTimeout = 60 * time.Second
	cfg.WebSocket.WriteTimeout = 10 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("USERHUB_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("USERHUB_GRPC_ADDRESS"); addr != "" {
		c.GRPC.Address = addr
	}
	if backend := os.Getenv("USERHUB_STORE_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if addr := os.Getenv("USERHUB_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if pw := os.Getenv("USERHUB_REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if size := os.Getenv("USERHUB_NOTIFICATION_BUFFER"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			c.Notifications.BufferSize = n
		}
	}
	if level := os.Getenv("USERHUB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GatewayDialTarget returns the address the REST façade should dial.
func (c *Config) GatewayDialTarget() string {
	if c.GRPC.GatewayTarget != "" {
		return c.GRPC.GatewayTarget
	}
	addr := c.GRPC.Address
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
