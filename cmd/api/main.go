package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hilot/internal/api"
	"hilot/internal/config"
	"hilot/internal/database"
	"hilot/internal/events"
	"hilot/internal/export"
	"hilot/internal/google"
	"hilot/internal/logging"
	"hilot/internal/metrics"
	"hilot/internal/notify"
	"hilot/internal/repository"
	"hilot/internal/service"
	"hilot/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, roster, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("database init failed")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	telemetryRepo, telemetryClose := initTelemetry(ctx, cfg, logger)
	defer telemetryClose()
	eventBus := events.NewEventBus()

	bookingService := service.NewBookingService(
		db, eventBus, telemetryRepo,
		cfg.Fees.Policy(), cfg.Booking, cfg.Telemetry.ArrivalStaleness(),
		logger,
	)
	walletService := service.NewWalletService(db, eventBus, logger)
	payoutService := service.NewPayoutService(db, eventBus, cfg.Payout, logger)

	if cfg.Telegram.Enabled {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier.SubscribeAll(eventBus)
		}
	}

	if cfg.Google.Enabled {
		startReportPusher(ctx, cfg, db, eventBus, logger)
	}

	exporter := export.NewExporter(db, cfg.Exports.Path, logger)

	sweeper := worker.NewTimeoutSweeper(
		db, bookingService,
		cfg.Booking.AcceptTimeout(), cfg.Booking.SweepInterval(),
		logger,
	)
	go sweeper.Run(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, logger)
	}

	server := api.NewHTTPServer(&cfg.API, roster, bookingService, walletService, payoutService, telemetryRepo, exporter, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadConfigAndLogger() (*config.Config, *config.Roster, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	rosterPath := os.Getenv("ROSTER_PATH")
	if rosterPath == "" {
		rosterPath = "configs/roster.yaml"
	}
	roster, err := config.LoadRoster(rosterPath)
	if err != nil {
		// Without a roster the API trusts the caller's provider data.
		logger.Warn().Err(err).Str("path", rosterPath).Msg("roster not loaded")
		roster = nil
	}

	return cfg, roster, logger, closer, nil
}

func initTelemetry(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*repository.FailoverTelemetryRepository, func()) {
	ttl := cfg.Telemetry.ArrivalStaleness()
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	redisRepo := repository.NewRedisTelemetryRepository(redisClient, ttl)
	memoryRepo := repository.NewMemoryTelemetryRepository(ttl)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, telemetry starts on in-memory fallback")
	}

	closeFn := func() {
		if err := repository.Close(redisClient); err != nil {
			logger.Warn().Err(err).Msg("error closing redis client")
		}
	}
	return repository.NewFailoverTelemetryRepository(redisRepo, memoryRepo, logger), closeFn
}

func startReportPusher(ctx context.Context, cfg *config.Config, db *database.DB, eventBus *events.EventBus, logger *zerolog.Logger) {
	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.ReportSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("sheets reporting disabled")
		return
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		event := logger.Warn().Err(err)
		if email, emailErr := sheetsService.GetServiceAccountEmail(cfg.Google.GoogleCredentialsFile); emailErr == nil {
			event = event.Str("service_account", email)
		}
		event.Msg("sheets connection test failed, reporting disabled; share the spreadsheet with the service account")
		return
	}

	pusher := worker.NewReportPusher(db, sheetsService, worker.DefaultRetryPolicy(), logger)
	pusher.Subscribe(eventBus)
	go pusher.Run(ctx)
	logger.Info().Msg("sheets settlement reporting enabled")
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
