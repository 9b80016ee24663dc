package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Database     DatabaseConfig
	JWT          JWTConfig
	App          AppConfig
	Compliance   compliance.Config
	Queue        QueueConfig
	Notification NotificationConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	StoreDriver    string
	Timezone       string // demo company timezone for the memory driver
	AllowedOrigins []string
}

// QueueConfig sizes the background recompute queue
type QueueConfig struct {
	Size    int
	Workers int
	Timeout time.Duration
}

type NotificationConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	Workers       int
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 25)
	if err != nil {
		return nil, err
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance_engine"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		StoreDriver:    getEnv("STORE_DRIVER", StoreDriverPostgres),
		Timezone:       getEnv("DEMO_TIMEZONE", "Asia/Jakarta"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	// Compliance policy
	defaults := compliance.DefaultConfig()
	config.Compliance = compliance.Config{
		FullDayTieBreak: compliance.TieBreakPolicy(getEnv("FULL_DAY_TIE_BREAK", string(defaults.FullDayTieBreak))),
	}
	if config.Compliance.LateGraceMinutes, err = getEnvInt("LATE_GRACE_MINUTES", defaults.LateGraceMinutes); err != nil {
		return nil, err
	}
	if config.Compliance.EarlyCheckoutGraceMinutes, err = getEnvInt("EARLY_CHECKOUT_GRACE_MINUTES", defaults.EarlyCheckoutGraceMinutes); err != nil {
		return nil, err
	}
	if config.Compliance.MinimumOvertimeMinutes, err = getEnvInt("MINIMUM_OVERTIME_MINUTES", defaults.MinimumOvertimeMinutes); err != nil {
		return nil, err
	}
	if config.Compliance.MaxReentrancyDepth, err = getEnvInt("MAX_REENTRANCY_DEPTH", defaults.MaxReentrancyDepth); err != nil {
		return nil, err
	}

	// Recompute queue
	if config.Queue.Size, err = getEnvInt("RECOMPUTE_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if config.Queue.Workers, err = getEnvInt("RECOMPUTE_WORKERS", 2); err != nil {
		return nil, err
	}
	if config.Queue.Timeout, err = getEnvDuration("RECOMPUTE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	// Notifications
	if config.Notification.BatchSize, err = getEnvInt("NOTIFY_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if config.Notification.FlushInterval, err = getEnvDuration("NOTIFY_FLUSH_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if config.Notification.Workers, err = getEnvInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.App.StoreDriver {
	case StoreDriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.App.StoreDriver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if err := c.Compliance.Validate(); err != nil {
		return err
	}
	if c.Queue.Size < 1 || c.Queue.Workers < 1 {
		return fmt.Errorf("RECOMPUTE_QUEUE_SIZE and RECOMPUTE_WORKERS must be positive")
	}
	if c.Notification.BatchSize < 1 || c.Notification.Workers < 1 {
		return fmt.Errorf("NOTIFY_BATCH_SIZE and NOTIFY_WORKERS must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
