// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/stchstepan/passbolt/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration (permission level cache)
	Cache CacheConfig

	// Auth configuration
	Auth AuthConfig

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

	// FullBaseURL is used to render absolute URLs (recovery links)
	FullBaseURL string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	ReplicaURLs string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// CacheConfig holds the optional Redis permission-cache configuration
type CacheConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
	TTL      time.Duration

	// GroupLRUSize bounds the in-process group membership cache
	GroupLRUSize int
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	// JWTSecret signs session tokens
	JWTSecret string

	// RecoveryTokenExpiry bounds the lifetime of account recovery tokens
	RecoveryTokenExpiry time.Duration

	// SecureCookies controls the Secure flag on emitted cookies
	SecureCookies bool
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
		Auth:          loadAuthConfig(),
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
		Host:            getEnv("PASSBOLT_HOST", "0.0.0.0"),
		Port:            getEnv("PASSBOLT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PASSBOLT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PASSBOLT_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PASSBOLT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PASSBOLT_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PASSBOLT_HEALTH_PORT", "9090"),
		FullBaseURL:     getEnv("PASSBOLT_FULL_BASE_URL", "http://localhost:8080"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("PASSBOLT_POSTGRES_URL", ""),
		ReplicaURLs: getEnv("PASSBOLT_POSTGRES_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("PASSBOLT_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("PASSBOLT_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("PASSBOLT_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("PASSBOLT_POSTGRES_MAX_LIFETIME", time.Hour),
		MaxIdleTime: getEnvDuration("PASSBOLT_POSTGRES_MAX_IDLE_TIME", 15*time.Minute),
	}
}

// loadCacheConfig loads the permission cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      getEnvBool("PASSBOLT_CACHE_ENABLED", false),
		URL:          getEnv("PASSBOLT_REDIS_URL", "redis://localhost:6379/0"),
		Password:     getEnv("PASSBOLT_REDIS_PASSWORD", ""),
		DB:           getEnvInt("PASSBOLT_REDIS_DB", 0),
		TTL:          getEnvDuration("PASSBOLT_CACHE_TTL", 5*time.Minute),
		GroupLRUSize: getEnvInt("PASSBOLT_GROUP_LRU_SIZE", 1024),
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:           getEnv("PASSBOLT_JWT_SECRET", ""),
		RecoveryTokenExpiry: getEnvDuration("PASSBOLT_RECOVERY_TOKEN_EXPIRY", 10*time.Minute),
		SecureCookies:       getEnvBool("PASSBOLT_SECURE_COOKIES", true),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("PASSBOLT_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PASSBOLT_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PASSBOLT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PASSBOLT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PASSBOLT_OTEL_SERVICE_NAME", "passbolt-api"),
		OTelServiceVersion: getEnv("PASSBOLT_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PASSBOLT_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

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

// getEnv returns the environment variable value or a default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as a bool or a default
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as a duration or a default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
