package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/consolehq/actionlog/pkg/audit"
	"github.com/consolehq/actionlog/pkg/storage/postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database postgres.Config
	Audit    AuditConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes)
	HealthPort string
}

// AuditConfig holds logger-specific settings.
type AuditConfig struct {
	// PipelineBuffer bounds the async write queue.
	PipelineBuffer int
	// WriteTimeout bounds each deferred insert.
	WriteTimeout time.Duration
	// StatsWindow bounds the statistics breakdown scan.
	StatsWindow int
	// CleanupSchedule is the cron expression for retention cleanup.
	CleanupSchedule string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Audit:    loadAuditConfig(),
		LogLevel: getEnv("ACTIONLOG_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ACTIONLOG_HOST", "0.0.0.0"),
		Port:            getEnv("ACTIONLOG_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ACTIONLOG_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ACTIONLOG_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ACTIONLOG_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ACTIONLOG_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ACTIONLOG_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.URL = getEnv("ACTIONLOG_POSTGRES_URL", "")

	if maxConns := getEnvInt("ACTIONLOG_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("ACTIONLOG_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("ACTIONLOG_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		PipelineBuffer:  getEnvInt("ACTIONLOG_PIPELINE_BUFFER", audit.DefaultPipelineBuffer),
		WriteTimeout:    getEnvDuration("ACTIONLOG_PIPELINE_WRITE_TIMEOUT", audit.DefaultWriteTimeout),
		StatsWindow:     getEnvInt("ACTIONLOG_STATS_WINDOW", audit.DefaultStatsWindow),
		CleanupSchedule: getEnv("ACTIONLOG_CLEANUP_SCHEDULE", "30 2 * * *"),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("ACTIONLOG_POSTGRES_URL is required")
	}
	if c.Audit.PipelineBuffer <= 0 {
		return fmt.Errorf("pipeline buffer must be positive")
	}
	if c.Audit.StatsWindow <= 0 {
		return fmt.Errorf("stats window must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
