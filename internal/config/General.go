package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by the LoadConfig function. Every knob has a default;
// only the database credentials are required.
var (
	// DBHost, DBPort, DBUser, DBPassword, DBName, DBSSLMode are the
	// PostgreSQL connection parameters.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// WorkerPoolSize bounds concurrent work units across all dispatcher ticks.
	WorkerPoolSize int

	// CriticalUnitDeadline applies to critical-class work units; UnitDeadline
	// applies to every other class.
	CriticalUnitDeadline time.Duration
	UnitDeadline         time.Duration

	// Tick intervals per frequency class. The notifier drains on the
	// critical cadence.
	CriticalInterval time.Duration
	HighInterval     time.Duration
	MediumInterval   time.Duration
	DailyInterval    time.Duration

	// SuppressionWindow is the alert de-duplication window.
	SuppressionWindow time.Duration

	// Retry policy for retriable fetch failures.
	FetchRetryMax    int
	FetchRetryBase   time.Duration
	FetchRetryCap    time.Duration
	FetchRetryJitter float64

	// NotifierRetryCap is the per-alert delivery attempt limit before the
	// alert is marked permanently failed.
	NotifierRetryCap int

	// WebPort serves the HTTP API and /metrics.
	WebPort string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading risk monitor configuration from environment variables...")

	var err error

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}
	DBPort = getEnvAsInt("DB_PORT", 5432)
	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}
	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}
	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", "require")

	WorkerPoolSize = getEnvAsInt("WORKER_POOL_SIZE", 16)

	CriticalUnitDeadline = getEnvAsDuration("CRITICAL_UNIT_DEADLINE", 30*time.Second)
	UnitDeadline = getEnvAsDuration("UNIT_DEADLINE", 60*time.Second)

	CriticalInterval = getEnvAsDuration("CRITICAL_INTERVAL", 5*time.Minute)
	HighInterval = getEnvAsDuration("HIGH_INTERVAL", 30*time.Minute)
	MediumInterval = getEnvAsDuration("MEDIUM_INTERVAL", 6*time.Hour)
	DailyInterval = getEnvAsDuration("DAILY_INTERVAL", 24*time.Hour)

	SuppressionWindow = getEnvAsDuration("SUPPRESSION_WINDOW", 15*time.Minute)

	FetchRetryMax = getEnvAsInt("FETCH_RETRY_MAX", 2)
	FetchRetryBase = getEnvAsDuration("FETCH_RETRY_BASE", time.Second)
	FetchRetryCap = getEnvAsDuration("FETCH_RETRY_CAP", 8*time.Second)
	FetchRetryJitter = getEnvAsFloat("FETCH_RETRY_JITTER", 0.25)

	NotifierRetryCap = getEnvAsInt("NOTIFIER_RETRY_CAP", 5)

	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	log.Info().
		Int("workerPoolSize", WorkerPoolSize).
		Str("criticalInterval", CriticalInterval.String()).
		Str("suppressionWindow", SuppressionWindow.String()).
		Msg("Configuration loaded")
	return nil
}

func getEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", errors.New("required environment variable not set: " + key)
	}
	return value, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
		return defaultValue
	}
	return i
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid float in environment, using default")
		return defaultValue
	}
	return f
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration in environment, using default")
		return defaultValue
	}
	return d
}
