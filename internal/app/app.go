// Package app wires together all dependencies and runs the auth service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/auth"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/config"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/event"
	handler "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/handler/http"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/repository/postgres"
	redisrepo "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/repository/redis"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/service"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/migrations"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/database"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/health"
	pkgkafka "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/kafka"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/tracing"
)

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	redis           *goredis.Client
	producer        *pkgkafka.Producer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Tracing.
	tracingShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  "auth-service",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// PostgreSQL connection pool and schema migrations. Pool sizing keeps
	// the defaults; connection details come from the environment.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Redis token state store.
	redisCfg := database.DefaultRedisConfig()
	redisCfg.Host = cfg.RedisHost
	redisCfg.Port = cfg.RedisPort
	redisCfg.Password = cfg.RedisPass
	redisCfg.DB = cfg.RedisDB

	redisClient, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL(),
		cfg.RefreshTokenTTL(),
	)
	userRepo := postgres.NewUserRepository(pool)
	tokenStore := redisrepo.NewTokenStore(redisClient)
	eventProducer := event.NewProducer(producer, logger)
	sessionService := service.NewSessionService(
		userRepo,
		tokenStore,
		jwtManager,
		eventProducer,
		logger,
		cfg.BcryptCost,
		cfg.ResetTokenTTL(),
	)

	// Health checks. Kafka is non-critical: the service degrades to not
	// publishing events rather than refusing auth traffic.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	// HTTP router.
	router := handler.NewRouter(
		sessionService,
		tokenStore,
		jwtManager,
		healthHandler,
		logger,
		handler.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		handler.CookieConfig{
			Domain:        cfg.CookieDomain,
			Secure:        cfg.IsProduction(),
			AccessMaxAge:  cfg.AccessTokenTTL(),
			RefreshMaxAge: cfg.RefreshTokenTTL(),
		},
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		redis:           redisClient,
		producer:        producer,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
