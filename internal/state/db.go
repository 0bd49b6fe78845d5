package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// ErrStorageUnavailable marks failures of the backing store. Callers decide
// whether to abort the tick; fetch results already persisted stay valid.
var ErrStorageUnavailable = errors.New("storage unavailable")

// storageErr tags a driver error with the storage-unavailable sentinel.
func storageErr(op string, err error) error {
	return errors.Join(ErrStorageUnavailable, fmt.Errorf("%s: %w", op, err))
}

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create the monitoring schema,
// tables and views if they don't exist. Safe to run multiple times.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE SCHEMA IF NOT EXISTS morpho;

		CREATE TABLE IF NOT EXISTS morpho.rm_asset_registry (
			symbol VARCHAR(32) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			asset_type VARCHAR(32) NOT NULL DEFAULT 'other',
			underlying VARCHAR(32),
			decimals INTEGER NOT NULL DEFAULT 18,
			config JSONB NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS morpho.rm_metrics_history (
			id BIGSERIAL PRIMARY KEY,
			asset_symbol VARCHAR(32) NOT NULL,
			metric_name VARCHAR(64) NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			chain VARCHAR(32),
			metadata JSONB,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_rm_metrics_asset_metric_time
			ON morpho.rm_metrics_history(asset_symbol, metric_name, recorded_at DESC);

		CREATE TABLE IF NOT EXISTS morpho.rm_alert_thresholds (
			id SERIAL PRIMARY KEY,
			asset_symbol VARCHAR(32),
			metric_name VARCHAR(64) NOT NULL,
			operator VARCHAR(4) NOT NULL,
			threshold_value DOUBLE PRECISION NOT NULL,
			severity VARCHAR(16) NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_rm_alert_thresholds_rule
			ON morpho.rm_alert_thresholds(COALESCE(asset_symbol, ''), metric_name, operator, threshold_value);

		CREATE TABLE IF NOT EXISTS morpho.rm_alerts_log (
			id BIGSERIAL PRIMARY KEY,
			asset_symbol VARCHAR(32) NOT NULL,
			metric_name VARCHAR(64) NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			threshold_value DOUBLE PRECISION NOT NULL,
			operator VARCHAR(4) NOT NULL,
			severity VARCHAR(16) NOT NULL,
			message TEXT,
			chain VARCHAR(32),
			notified BOOLEAN NOT NULL DEFAULT FALSE,
			notification_channel VARCHAR(32),
			suppressed_count INTEGER NOT NULL DEFAULT 0,
			delivery_attempts INTEGER NOT NULL DEFAULT 0,
			failed BOOLEAN NOT NULL DEFAULT FALSE,
			failure_reason TEXT,
			triggered_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_rm_alerts_pending
			ON morpho.rm_alerts_log(triggered_at) WHERE notified = FALSE AND failed = FALSE;
		CREATE INDEX IF NOT EXISTS idx_rm_alerts_rule_time
			ON morpho.rm_alerts_log(asset_symbol, metric_name, operator, threshold_value, severity, triggered_at DESC);

		CREATE OR REPLACE VIEW morpho.rm_latest_metrics AS
			SELECT DISTINCT ON (asset_symbol, metric_name)
				id, asset_symbol, metric_name, value, chain, metadata, recorded_at
			FROM morpho.rm_metrics_history
			ORDER BY asset_symbol, metric_name, recorded_at DESC;

		CREATE OR REPLACE VIEW morpho.rm_active_alerts AS
			SELECT *
			FROM morpho.rm_alerts_log
			WHERE triggered_at > NOW() - INTERVAL '24 hours';
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
