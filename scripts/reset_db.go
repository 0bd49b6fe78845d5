package main

import (
	"fmt"
	"os"

	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/state"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting monitoring schema reset script...")

	// Load environment variables from .env file
	err := godotenv.Load()
	if err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPortStr := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSSLMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPortStr == "" {
		dbPortStr = "5432"
	}
	if dbUser == "" {
		log.Fatal().Msg("DB_USER environment variable not set.")
	}
	if dbName == "" {
		log.Fatal().Msg("DB_NAME environment variable not set.")
	}
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	dbPort := 5432
	if dbPortStr != "" {
		fmt.Sscanf(dbPortStr, "%d", &dbPort)
	}

	dbCfg := state.DBConfig{
		Host: dbHost, Port: dbPort,
		User: dbUser, Password: dbPassword,
		DBName: dbName, SSLMode: dbSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer state.CloseDB()

	// Drop every monitoring table and view, then rebuild the schema.
	dropSQL := `
		DROP VIEW IF EXISTS morpho.rm_latest_metrics;
		DROP VIEW IF EXISTS morpho.rm_active_alerts;
		DROP TABLE IF EXISTS morpho.rm_alerts_log;
		DROP TABLE IF EXISTS morpho.rm_alert_thresholds;
		DROP TABLE IF EXISTS morpho.rm_metrics_history;
		DROP TABLE IF EXISTS morpho.rm_asset_registry;
	`
	if _, err := state.DB.Exec(dropSQL); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop monitoring tables")
	}
	log.Info().Msg("Dropped existing monitoring tables.")

	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate schema")
	}
	log.Info().Msg("Monitoring schema reset complete.")
}
