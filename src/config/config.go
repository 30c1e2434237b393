package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

const (
	TriggerModeHTTP  = "http"
	TriggerModeQueue = "queue"
)

type Config struct {
	CronSecret string
	BaseURL    string
	Port       string

	DatabaseDSN string
	RedisAddr   string
	RedisPass   string
	RedisDB     int

	BatchSize      int
	TriggerMode    string
	TriggerQueue   string
	TriggerTimeout time.Duration
	LockKey        string
	LockTTL        time.Duration

	LogLevel   string
	DBLogLevel string

	// Consumed by collaborators outside this service.
	VectorDBAPIKey string
	SupabaseURL    string
	SupabaseKey    string
}

// MissingKeysError lists every required variable that was unset.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Keys, ", ")
}

// LoadDotEnv loads a .env file if present. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func Load() (*Config, error) {
	cfg := &Config{
		CronSecret:     os.Getenv("CRON_SECRET"),
		BaseURL:        strings.TrimRight(os.Getenv("BASE_URL"), "/"),
		Port:           getEnv("PORT", "8080"),
		DatabaseDSN:    DatabaseDSN(),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:      getEnv("REDIS_PASSWORD", ""),
		TriggerMode:    strings.ToLower(getEnv("TRIGGER_MODE", TriggerModeHTTP)),
		TriggerQueue:   getEnv("TRIGGER_QUEUE", "process_batch_jobs"),
		LockKey:        getEnv("INIT_LOCK_KEY", "recommendation_batches:init_lock"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBLogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		VectorDBAPIKey: os.Getenv("VECTOR_DB_API_KEY"),
		SupabaseURL:    os.Getenv("SUPABASE_URL"),
		SupabaseKey:    os.Getenv("SUPABASE_KEY"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getEnvInt("BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.TriggerTimeout, err = getEnvDuration("TRIGGER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getEnvDuration("INIT_LOCK_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.TriggerMode {
	case TriggerModeHTTP, TriggerModeQueue:
	default:
		return nil, fmt.Errorf("unknown TRIGGER_MODE %q (use %s or %s)", cfg.TriggerMode, TriggerModeHTTP, TriggerModeQueue)
	}

	return cfg, nil
}

// Validate reports the keys needed to serve or run an initialization.
// Read-only commands skip it.
func (c *Config) Validate() error {
	var missing []string
	if c.CronSecret == "" {
		missing = append(missing, "CRON_SECRET")
	}
	if c.TriggerMode == TriggerModeHTTP && c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// GormLogLevel maps DB_LOG_LEVEL onto gorm's logger levels.
func (c *Config) GormLogLevel() logger.LogLevel {
	switch strings.ToLower(c.DBLogLevel) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// DatabaseDSN returns DB_DSN, or a DSN built from the DB_* variables.
func DatabaseDSN() string {
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "postgres"),
		getEnv("DB_PORT", "5432"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
