package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dpedwards/webstore/internal/config"
	"github.com/dpedwards/webstore/internal/event"
	handler "github.com/dpedwards/webstore/internal/handler/http"
	"github.com/dpedwards/webstore/internal/repository"
	"github.com/dpedwards/webstore/internal/repository/memstore"
	"github.com/dpedwards/webstore/internal/repository/postgres"
	"github.com/dpedwards/webstore/internal/service"
	"github.com/dpedwards/webstore/migrations"
	"github.com/dpedwards/webstore/pkg/database"
	"github.com/dpedwards/webstore/pkg/health"
	pkgkafka "github.com/dpedwards/webstore/pkg/kafka"
	"github.com/dpedwards/webstore/pkg/middleware"
	"github.com/dpedwards/webstore/pkg/tracing"
)

const (
	serviceName    = "webstore"
	serviceVersion = "0.1.0"

	stockReceivedGroup = "webstore-stock-received"
	idempotencyPrefix  = "webstore:idempotency"
	kafkaPingAttempts  = 3
)

// App wires together all dependencies and runs the webstore service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	stockReceived  *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	store, err := a.initStore(ctx, healthHandler)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	// Event producer. Without Kafka the services skip publishing.
	var events service.EventPublisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		if err := database.Retry(ctx, logger, "kafka producer ping", kafkaPingAttempts, nil, a.producer.Ping); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	// Build the service graph.
	orders := service.NewOrderService(store, events, logger)
	products := service.NewProductService(store, logger)
	warehouses := service.NewWarehouseService(store, events, logger)

	if cfg.KafkaEnabled {
		idempotency, err := a.initIdempotency(ctx, healthHandler)
		if err != nil {
			a.closeAll()
			return nil, err
		}
		consumer := event.NewConsumer(warehouses, logger)
		a.stockReceived = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  stockReceivedGroup,
			Topic:    event.TopicWarehouseStockReceived,
			MinBytes: 1,
			MaxBytes: 10e6,
			DLQ:      a.dlq,
		}, pkgkafka.IdempotentHandler(idempotency, consumer.HandleStockReceived, logger), logger)
	}

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Orders:     orders,
		Products:   products,
		Warehouses: warehouses,
	}, healthHandler, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: cfg.RequestTimeout(),
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore opens the configured storage backend.
func (a *App) initStore(ctx context.Context, healthHandler *health.Handler) (repository.Store, error) {
	if a.cfg.StorageBackend == config.StorageMemory {
		a.logger.Warn("using in-memory storage, data is lost on exit")
		return memstore.New(memstore.DefaultWarehouses()...), nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	healthHandler.RegisterCritical("postgres", pool.Ping)
	return postgres.NewStore(pool), nil
}

// initIdempotency returns the Redis-backed store when Redis is enabled and
// the in-memory store otherwise.
func (a *App) initIdempotency(ctx context.Context, healthHandler *health.Handler) (pkgkafka.IdempotencyStore, error) {
	if !a.cfg.RedisEnabled {
		return pkgkafka.NewMemoryIdempotencyStore(a.cfg.IdempotencyTTL()), nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis().Addr()))

	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return pkgkafka.NewRedisIdempotencyStore(client, idempotencyPrefix, a.cfg.IdempotencyTTL()), nil
}

// Run starts the HTTP server and the Kafka consumer, then blocks until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.stockReceived != nil {
		go func() {
			if err := a.stockReceived.Start(ctx); err != nil {
				errCh <- fmt.Errorf("stock received consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("component failed, shutting down", slog.String("error", err.Error()))
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka consumer, producers, Redis, PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeAll releases everything except the HTTP server. It is safe on a
// partially initialized App.
func (a *App) closeAll() error {
	var errs []error

	// Flush spans after the HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.stockReceived != nil {
		if err := a.stockReceived.Close(); err != nil {
			a.logger.Error("stock received consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
