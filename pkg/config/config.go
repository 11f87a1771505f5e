package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gemyard/gemyard/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration
	Cache CacheConfig

	// Delivery configuration
	Delivery DeliveryConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// BaseURL is the public URL of this registry, used in delivery payloads
	BaseURL string
}

// DatabaseConfig holds PostgreSQL configuration. An empty URL selects the
// in-memory stores, which only make sense for development.
type DatabaseConfig struct {
	PostgresURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig holds the gem catalog cache configuration
type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	L1Size        int
}

// DeliveryConfig holds webhook delivery configuration
type DeliveryConfig struct {
	Timeout     time.Duration
	Concurrency int

	// GaugeRefreshSchedule is a cron expression for the business gauge job
	GaugeRefreshSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Delivery:      loadDeliveryConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GEMYARD_HOST", "0.0.0.0"),
		Port:            getEnv("GEMYARD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GEMYARD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GEMYARD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GEMYARD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GEMYARD_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GEMYARD_HEALTH_PORT", "9090"),
		BaseURL:         getEnv("GEMYARD_BASE_URL", "http://localhost:8080"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		PostgresURL:     getEnv("GEMYARD_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("GEMYARD_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("GEMYARD_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("GEMYARD_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

// loadCacheConfig loads cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       getEnvBool("GEMYARD_CACHE_ENABLED", true),
		RedisURL:      getEnv("GEMYARD_REDIS_URL", ""),
		RedisPassword: getEnv("GEMYARD_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("GEMYARD_REDIS_DB", 0),
		TTL:           getEnvDuration("GEMYARD_CACHE_TTL", 15*time.Minute),
		L1Size:        getEnvInt("GEMYARD_L1_CACHE_SIZE", 1024),
	}
}

// loadDeliveryConfig loads webhook delivery configuration from environment
func loadDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		Timeout:              getEnvDuration("GEMYARD_DELIVERY_TIMEOUT", 5*time.Second),
		Concurrency:          getEnvInt("GEMYARD_DELIVERY_CONCURRENCY", 8),
		GaugeRefreshSchedule: getEnv("GEMYARD_GAUGE_REFRESH_SCHEDULE", "@every 1m"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("GEMYARD_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("GEMYARD_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GEMYARD_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GEMYARD_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GEMYARD_OTEL_SERVICE_NAME", "gemyard"),
		OTelServiceVersion: getEnv("GEMYARD_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GEMYARD_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.PostgresURL != "" {
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("postgres max connections must be positive")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("postgres idle connections cannot exceed max connections")
		}
	}

	// Validate delivery config
	if c.Delivery.Timeout <= 0 {
		return fmt.Errorf("delivery timeout must be positive")
	}
	if c.Delivery.Concurrency <= 0 {
		return fmt.Errorf("delivery concurrency must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
