package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/avantgarde-labs/riskmon/internal/alerting"
	catalogpkg "github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/config"
	"github.com/avantgarde-labs/riskmon/internal/dispatcher"
	"github.com/avantgarde-labs/riskmon/internal/fetcher"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/notify"
	"github.com/avantgarde-labs/riskmon/internal/scheduler"
	"github.com/avantgarde-labs/riskmon/internal/state"
	"github.com/avantgarde-labs/riskmon/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the risk monitoring core.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Risk Monitor Core Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Seed built-in threshold rules, then load the full set into the
	// in-memory catalog.
	seeded, err := state.SeedThresholds(catalogpkg.SeedThresholdRules())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed threshold rules")
	}
	if seeded > 0 {
		log.Info().Int("rules", seeded).Msg("Seeded built-in threshold rules")
	}

	thresholds := catalogpkg.NewThresholdCatalog()
	alertEngine := alerting.NewEngine(thresholds, config.SuppressionWindow)
	if err := alertEngine.ReloadThresholds(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load threshold catalog")
	}

	// --- 2. Fetcher Family and Dispatcher ---
	evmClients := fetcher.NewEVMClients()
	defer evmClients.Close()

	dispatcherCfg := dispatcher.Config{
		WorkerPoolSize:       config.WorkerPoolSize,
		CriticalUnitDeadline: config.CriticalUnitDeadline,
		UnitDeadline:         config.UnitDeadline,
		RetryMax:             config.FetchRetryMax,
		RetryBase:            config.FetchRetryBase,
		RetryCap:             config.FetchRetryCap,
		RetryJitter:          config.FetchRetryJitter,
	}
	dispatch := dispatcher.New(dispatcherCfg, alertEngine,
		fetcher.NewOracleFetcher(evmClients),
		fetcher.NewReserveFetcher(evmClients),
		fetcher.NewLiquidityFetcher(),
		fetcher.NewLendingFetcher(evmClients),
		fetcher.NewDistributionFetcher(),
		fetcher.NewMarketFetcher(),
	)

	// --- 3. Notification Transports ---
	var transports []notify.Transport
	if token, chat := config.TelegramBotToken(), config.TelegramChatID(); token != "" && chat != "" {
		transports = append(transports, notify.NewTelegramTransport(token, chat))
		log.Info().Msg("Telegram transport enabled")
	}
	if webhook := config.SlackWebhookURL(); webhook != "" {
		transports = append(transports, notify.NewSlackTransport(webhook))
		log.Info().Msg("Slack transport enabled")
	}
	if len(transports) == 0 {
		log.Warn().Msg("No notification transports configured; alerts will stay pending")
	}
	notifier := alerting.NewNotifier(config.NotifierRetryCap, transports...)

	// --- 4. Web Server ---
	webServer := web.NewWebServer(config.WebPort, alertEngine)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	// --- 5. Scheduler Main Loop ---
	intervals := scheduler.Intervals{
		Critical: config.CriticalInterval,
		High:     config.HighInterval,
		Medium:   config.MediumInterval,
		Daily:    config.DailyInterval,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(dispatch, notifier, intervals)
	sched.Run(ctx)

	log.Info().Msg("Risk Monitor Core stopped.")
}
