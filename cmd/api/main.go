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
	"path/filepath"
	"syscall"
	"time"

	"velora/internal/api"
	"velora/internal/config"
	"velora/internal/database"
	"velora/internal/domain"
	"velora/internal/events"
	"velora/internal/google"
	"velora/internal/logging"
	"velora/internal/metrics"
	"velora/internal/models"
	"velora/internal/notify"
	"velora/internal/repository"
	"velora/internal/service"
	"velora/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	dresses, err := loadDresses(cfg, &logger)
	if err != nil {
		return err
	}

	if err := prepareDirectories(cfg); err != nil {
		logger.Error().Err(err).Msg("prepare directories")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, dresses, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	cache := initCache(redisClient, &logger)

	syncWorker := worker.NewSyncWorker(
		db,
		initRentalsSheet(ctx, cfg, &logger),
		initNotifier(cfg, &logger),
		redisClient,
		worker.RetryPolicy{MaxRetries: cfg.Worker.MaxRetries},
		worker.Options{QueueSize: cfg.Worker.QueueSize, RedisQueueKey: cfg.Worker.RedisQueue},
		logging.Component(&logger, "sync-worker"),
	)
	go syncWorker.Start(ctx)

	eventBus := events.NewEventBus()
	subscribeRentalEvents(ctx, eventBus, cache, &logger)

	loc := cfg.Location()
	rentals := service.NewRentalService(db, cache, eventBus, syncWorker, service.RentalOptions{
		Location:          loc,
		MaxBookingDays:    cfg.Rental.MaxBookingDays,
		RateLimitAttempts: cfg.Rental.BookingRateLimit.Attempts,
		RateLimitWindow:   time.Duration(cfg.Rental.BookingRateLimit.Window) * time.Second,
	}, logging.Component(&logger, "rentals"))
	dressService := service.NewDressService(db, cache, eventBus, service.DressOptions{
		Location:         loc,
		AvailabilityDays: cfg.Rental.AvailabilityDays,
	}, logging.Component(&logger, "dresses"))

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(&logger, "backup"))
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	httpServer := api.NewHTTPServer(cfg.API, rentals, dressService, db, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, rentals, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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

// loadDresses reads the seed catalog. A missing file means an empty seed.
func loadDresses(cfg *config.Config, logger *zerolog.Logger) ([]models.WeddingDress, error) {
	seedPath := os.Getenv("DRESSES_PATH")
	if seedPath == "" {
		seedPath = cfg.Catalog.SeedPath
	}

	data, err := os.ReadFile(seedPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("seed_path", seedPath).Msg("dress seed not found, starting with the stored catalog")
		return nil, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read dress seed")
		return nil, err
	}

	var seed struct {
		Dresses []models.WeddingDress `yaml:"dresses"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse dress seed")
		return nil, err
	}

	if err := config.ValidateDresses(seed.Dresses); err != nil {
		logger.Error().Err(err).Msg("dress seed validation failed")
		return nil, err
	}

	return seed.Dresses, nil
}

func prepareDirectories(cfg *config.Config) error {
	dirs := []string{filepath.Dir(cfg.Database.Path)}
	if cfg.Backup.Enabled && cfg.Backup.StoragePath != "" {
		dirs = append(dirs, cfg.Backup.StoragePath)
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, dresses []models.WeddingDress, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if len(dresses) > 0 {
		if err := db.SyncDresses(ctx, dresses); err != nil {
			db.Close()
			logger.Error().Err(err).Msg("sync dress seed")
			return nil, err
		}
		logger.Info().Int("dresses", len(dresses)).Msg("dress seed synced")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initCache puts Redis in front of the in-memory cache when Redis is reachable.
func initCache(redisClient *redis.Client, logger *zerolog.Logger) domain.CacheRepository {
	memory := repository.NewMemoryCacheRepository(models.CatalogCacheTTL*time.Second)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverCacheRepository(
		repository.NewRedisCacheRepository(redisClient, models.CatalogCacheTTL*time.Second),
		memory,
		logging.Component(logger, "cache"),
	)
}

func initRentalsSheet(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.SheetsWriter {
	if cfg.Google.CredentialsFile == "" || cfg.Google.RentalsSpreadsheetID == "" {
		return nil
	}

	sheet, err := google.NewRentalsSheet(ctx, cfg.Google.CredentialsFile, cfg.Google.RentalsSpreadsheetID, cfg.Google.RentalsSheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheet.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheet.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("write rentals sheet header")
	}
	if err := sheet.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("warm up rentals sheet cache")
	}

	logger.Info().Str("sheet", cfg.Google.RentalsSheetName).Msg("google sheets connected")
	return sheet
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ManagerChatIDs) == 0 {
		return nil
	}

	bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without manager notifications")
		return nil
	}

	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.Telegram.ManagerChatIDs)).Msg("telegram notifier ready")
	return notify.NewTelegramNotifier(bot, cfg.Telegram.ManagerChatIDs, logging.Component(logger, "telegram"))
}

// subscribeRentalEvents logs rental lifecycle events. A return bumps timesRented,
// which reorders the catalog, so it also drops cached catalog pages.
func subscribeRentalEvents(ctx context.Context, bus *events.EventBus, cache domain.CacheRepository, logger *zerolog.Logger) {
	eventLogger := logger.With().Str("component", "events").Logger()

	logRental := func(ev *events.Event) error {
		var payload events.RentalEventPayload
		if err := ev.Decode(&payload); err != nil {
			eventLogger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		eventLogger.Info().
			Str("event", ev.Type).
			Str("rental_id", payload.RentalID).
			Str("dress_id", payload.DressID).
			Str("status", payload.Status).
			Msg("rental event")
		return nil
	}

	for _, eventType := range []string{
		events.EventRentalCreated,
		events.EventRentalConfirmed,
		events.EventRentalActivated,
		events.EventRentalReturned,
		events.EventRentalCancelled,
	} {
		bus.Subscribe(eventType, logRental)
	}

	bus.Subscribe(events.EventRentalReturned, func(ev *events.Event) error {
		if err := cache.InvalidateDresses(ctx); err != nil {
			eventLogger.Warn().Err(err).Msg("invalidate catalog cache after return")
		}
		return nil
	})

	bus.Subscribe(events.EventDressChanged, func(ev *events.Event) error {
		var payload events.DressEventPayload
		if err := ev.Decode(&payload); err != nil {
			return err
		}
		eventLogger.Info().Str("dress_id", payload.DressID).Str("action", payload.Action).Msg("catalog changed")
		return nil
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.ListenAndServe(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().
		Bool("grpc", grpcServer != nil).
		Int("grpc_port", cfg.API.GRPC.Port).
		Int("http_port", cfg.API.HTTP.Port).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
