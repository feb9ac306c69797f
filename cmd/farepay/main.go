package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"farepay/internal/app/payments"
	"farepay/internal/config"
	"farepay/internal/fare"
	"farepay/internal/gateway/daraja"
	payments_http "farepay/internal/handler/http/payments"
	kafka_handler "farepay/internal/handler/kafka"
	"farepay/internal/infrastructure/database"
	kafka_infra "farepay/internal/infrastructure/kafka"
	"farepay/internal/outbox"
	"farepay/internal/repository/callback_repo"
	callback_memory "farepay/internal/repository/callback_repo/memory"
	callback_pg "farepay/internal/repository/callback_repo/postgres"
	outbox_pg "farepay/internal/repository/outbox_repo/postgres"
	"farepay/internal/repository/session_repo"
	session_memory "farepay/internal/repository/session_repo/memory"
	session_pg "farepay/internal/repository/session_repo/postgres"
	"farepay/internal/repository/status_repo"
	status_redis "farepay/internal/repository/status_repo/redis"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}

func connectDB(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	dbConfig := database.DBConfig{
		Host:            cfg.DBConfig.Host,
		Port:            cfg.DBConfig.Port,
		User:            cfg.DBConfig.User,
		Password:        cfg.DBConfig.Password,
		DBName:          cfg.DBConfig.Name,
		SSLMode:         cfg.DBConfig.SSLMode,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}

	var (
		db  *sql.DB
		err error
	)
	maxRetries := 10
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL database!")
			return db, nil
		}
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, err)
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Running database migrations...", zap.String("source", cfg.MigrationsPath))
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations completed successfully (or no new migrations).")
	return nil
}

// newStatusCache returns a nil interface when Redis is not configured so that the
// status service falls through to the store.
func newStatusCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (status_repo.StatusCache, *redis.Client) {
	if cfg.RedisConfig.Addr == "" {
		logger.Info("REDIS_ADDR not set, status cache disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The cache is optional; reads degrade to the store while Redis is down.
		logger.Warn("Redis ping failed, continuing with a degraded cache", zap.Error(err))
	} else {
		logger.Info("Connected to Redis", zap.String("addr", cfg.RedisConfig.Addr))
	}
	return status_redis.NewStatusCache(client, cfg.RedisConfig.TTL), client
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Farepay service starting...", zap.String("store_driver", cfg.StoreDriver))

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	var (
		db            *sql.DB
		sessionStore  session_repo.SessionRepository
		callbackStore callback_repo.CallbackRepository
	)
	outboxRepo := outbox_pg.NewOutboxRepository()
	useEventStream := cfg.StoreDriver == config.StoreDriverPostgres && cfg.KafkaEnabled

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		appLogger.Warn("Using in-memory stores; sessions do not survive a restart")
		sessionStore = session_memory.NewSessionRepository()
		callbackStore = callback_memory.NewCallbackRepository()
	default:
		appLogger.Info("Waiting for database to be available...")
		db, err = connectDB(cfg, appLogger)
		if err != nil {
			appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			} else {
				appLogger.Info("Database connection closed.")
			}
		}()
		if err := runMigrations(cfg, appLogger); err != nil {
			appLogger.Fatal("Failed to migrate database", zap.Error(err))
		}
		sessionStore = session_pg.NewSessionRepository(db, outboxRepo, cfg.KafkaSessionEventsTopic,
			appLogger.With(zap.String("component", "SessionRepository")))
		callbackStore = callback_pg.NewCallbackRepository(db)
	}

	if useEventStream {
		ctx, cancel := context.WithTimeout(ctxMain, 10*time.Second)
		err := kafka_infra.EnsureTopics(ctx, cfg.GetKafkaBrokers(), []string{cfg.KafkaSessionEventsTopic}, appLogger)
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
		}
	}

	statusCache, redisClient := newStatusCache(ctxMain, cfg, appLogger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				appLogger.Error("Error closing Redis client", zap.Error(err))
			}
		}()
	}

	gateway := daraja.NewClient(daraja.Config{
		BaseURL:          cfg.DarajaConfig.BaseURL,
		ConsumerKey:      cfg.DarajaConfig.ConsumerKey,
		ConsumerSecret:   cfg.DarajaConfig.ConsumerSecret,
		ShortCode:        cfg.DarajaConfig.ShortCode,
		PassKey:          cfg.DarajaConfig.PassKey,
		CallbackURL:      cfg.DarajaConfig.CallbackURL,
		TransactionType:  cfg.DarajaConfig.TransactionType,
		AccountReference: cfg.DarajaConfig.AccountReference,
		Timeout:          cfg.DarajaConfig.Timeout,
	}, appLogger.With(zap.String("component", "DarajaClient")))

	initiationService := payments.NewInitiationService(
		fare.NewCalculator(cfg.FareMinimumTotal),
		gateway,
		sessionStore,
		appLogger.With(zap.String("component", "InitiationService")),
	)
	reconciler := payments.NewCallbackReconciler(
		sessionStore,
		callbackStore,
		appLogger.With(zap.String("component", "CallbackReconciler")),
	)
	statusService := payments.NewStatusService(
		sessionStore,
		statusCache,
		appLogger.With(zap.String("component", "StatusService")),
	)
	appLogger.Info("Payment services initialized.")

	handlerLogger := appLogger.With(zap.String("component", "HTTPHandler"))
	handler := payments_http.NewPaymentHandler(initiationService, reconciler, statusService, daraja.ParseCallback, handlerLogger)
	router := payments_http.NewRouter(payments_http.RouterConfig{
		AllowedOrigins:   cfg.HTTPConfig.AllowedOrigins,
		PayRatePerMinute: cfg.HTTPConfig.PayRatePerMinute,
		PayRateBurst:     cfg.HTTPConfig.PayRateBurst,
		RequestTimeout:   cfg.HTTPConfig.RequestTimeout,
	}, handler, handlerLogger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPConfig.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	var (
		outboxProcessor *outbox.Processor
		kafkaProducer   kafka_infra.Producer
		eventsConsumer  *kafka_infra.Consumer
	)
	outboxDone := make(chan struct{})
	consumerDone := make(chan struct{})
	if useEventStream {
		kafkaProducer = kafka_infra.NewProducer(cfg.GetKafkaBrokers(), 10*time.Second,
			appLogger.With(zap.String("component", "KafkaProducer")))
		outboxProcessor = outbox.NewProcessor(
			db,
			outboxRepo,
			kafkaProducer,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			cfg.OutboxBatchSize,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		go func() {
			defer close(outboxDone)
			appLogger.Info("Starting Outbox Processor...")
			outboxProcessor.Start(ctxMain)
			appLogger.Info("Outbox Processor stopped.")
		}()

		if statusCache != nil {
			eventsConsumer = kafka_infra.NewConsumer(
				cfg.GetKafkaBrokers(),
				cfg.KafkaSessionEventsTopic,
				cfg.KafkaConsumerGroup,
				kafka_handler.SessionResolvedMessageHandler(statusCache, appLogger.With(zap.String("component", "SessionResolvedHandler"))),
				appLogger.With(zap.String("component", "SessionEventsConsumer")),
			)
			go func() {
				defer close(consumerDone)
				appLogger.Info("Starting Session Events Kafka Consumer...")
				if err := eventsConsumer.Consume(ctxMain); err != nil &&
					!errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrGroupClosed) {
					appLogger.Error("Session Events Kafka Consumer failed", zap.Error(err))
				}
				appLogger.Info("Session Events Kafka Consumer stopped.")
			}()
		} else {
			close(consumerDone)
		}
	} else {
		close(outboxDone)
		close(consumerDone)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Stop accepting callbacks and polls first; in-flight reconciliations finish on their own contexts.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	cancelMain()
	if outboxProcessor != nil {
		outboxProcessor.Stop()
	}
	if eventsConsumer != nil {
		if err := eventsConsumer.Close(); err != nil {
			appLogger.Error("Error closing Session Events Kafka Consumer", zap.Error(err))
		}
	}

	for name, done := range map[string]<-chan struct{}{"outbox processor": outboxDone, "events consumer": consumerDone} {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			appLogger.Warn("Background worker did not stop in time", zap.String("worker", name))
		}
	}

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		} else {
			appLogger.Info("Kafka producer closed.")
		}
	}

	appLogger.Info("Application gracefully shut down.")
}
