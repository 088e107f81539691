package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barbershop/internal/api"
	"barbershop/internal/availability"
	"barbershop/internal/config"
	"barbershop/internal/database"
	"barbershop/internal/domain"
	"barbershop/internal/events"
	"barbershop/internal/google"
	"barbershop/internal/logging"
	"barbershop/internal/metrics"
	"barbershop/internal/models"
	"barbershop/internal/notify"
	"barbershop/internal/repository"
	"barbershop/internal/schedule"
	"barbershop/internal/service"
	"barbershop/internal/store"
	"barbershop/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, cleanup, err := openStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer cleanup()

	loc, _ := cfg.Schedule.Location()
	minutes, _ := cfg.Schedule.WorkingMinutes()
	closed, _ := cfg.Schedule.Closed()

	bus := events.NewEventBus()
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.Subscribe(bus)
	}
	initTelegram(ctx, cfg, loc, bus, &logger)
	initSheets(ctx, cfg, loc, bus, &logger)

	appointments := store.NewAppointmentStore(kv, logging.Component(&logger, "store"),
		store.WithRetention(cfg.Schedule.RetentionMonths),
		store.WithCleanupInterval(cfg.Schedule.CleanupInterval),
	)

	view := api.NewViewState()
	session := service.NewSchedulerSession(appointments, view,
		service.WithLocation(loc),
		service.WithWorkingHours(schedule.WorkingHours{Start: minutes[0], End: minutes[1], Step: cfg.Schedule.SlotMinutes}),
		service.WithClosedDays(closed),
		service.WithIndexFactory(availability.NewHashedIndex),
		service.WithPublisher(bus),
		service.WithLogger(logging.Component(&logger, "session")),
	)
	session.Start(ctx)

	if notifier, ok := kv.(domain.ChangeNotifier); ok {
		if _, err := service.WatchStore(ctx, notifier, session.HandleEvent, logging.Component(&logger, "watcher")); err != nil {
			logger.Warn().Err(err).Msg("store change notifications unavailable")
		}
	}

	startMetrics(ctx, cfg, &logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, nothing to serve")
		<-ctx.Done()
		return nil
	}

	httpServer := api.NewHTTPServer(cfg.API, session, view, cfg.Services, cfg.Exports.Path, logging.Component(&logger, "http"))
	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// openStore builds the configured key-value backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.KeyValueStore, func(), error) {
	var (
		kv      domain.KeyValueStore
		cleanup = func() {}
	)

	switch cfg.Storage.Backend {
	case models.BackendRedis:
		client := repository.NewRedisClient(cfg.Redis)
		redisStore := repository.NewRedisStore(client, cfg.Storage.KeyPrefix)
		if err := repository.Ping(ctx, client); err != nil {
			if !cfg.Storage.Failover {
				_ = client.Close()
				return nil, nil, fmt.Errorf("redis connection failed: %w", err)
			}
			logger.Warn().Err(err).Msg("redis connection failed, serving reads from local mirror")
		} else {
			logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		}
		kv = redisStore
		cleanup = func() { _ = repository.Close(client) }

	case models.BackendSQLite:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
		kv = db
		cleanup = func() { _ = db.Close() }

	default:
		kv = repository.NewMemoryStore(cfg.Storage.QuotaBytes)
		logger.Warn().Msg("using in-memory storage, appointments are lost on restart")
	}

	if cfg.Storage.Failover && cfg.Storage.Backend != models.BackendMemory {
		kv = repository.NewFailoverStore(kv, repository.RetryPolicy{}, logging.Component(logger, "failover"))
	}

	return kv, cleanup, nil
}

func initTelegram(ctx context.Context, cfg *config.Config, loc *time.Location, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled() {
		return
	}

	bot, err := notify.NewTelegramBot(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without booking notifications")
		return
	}

	notifier := notify.NewTelegramNotifier(bot, cfg.Telegram.ChatID, loc, logging.Component(logger, "telegram"))
	notifier.Subscribe(bus)
	go notifier.Start(ctx)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func initSheets(ctx context.Context, cfg *config.Config, loc *time.Location, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Google.Enabled() {
		return
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName, loc)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets not reachable, bookings will be retried")
	}

	sheetsWorker := worker.NewSheetsWorker(sheetsService, initRedis(ctx, cfg, logger), repository.RetryPolicy{}, cfg.Google.MaxRetries, logging.Component(logger, "sheets"))
	sheetsWorker.SetDeadLetterKey(cfg.Storage.KeyPrefix + "sheets:deadletter")
	sheetsWorker.Subscribe(bus)
	go sheetsWorker.Start(ctx)

	logger.Info().Msg("google sheets connected")
}

// initRedis returns nil when Redis is not configured or not reachable.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without dead-letter queue")
		_ = client.Close()
		return nil
	}
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()
	return client
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Str("backend", cfg.Storage.Backend).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
