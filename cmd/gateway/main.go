package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/hellodits/dee-POS-sub002/internal/adapters/primary/http"
	mw "github.com/hellodits/dee-POS-sub002/internal/adapters/primary/http/middleware"
	"github.com/hellodits/dee-POS-sub002/internal/adapters/primary/messaging"
	"github.com/hellodits/dee-POS-sub002/internal/adapters/primary/websocket"
	"github.com/hellodits/dee-POS-sub002/internal/adapters/secondary/metrics"
	"github.com/hellodits/dee-POS-sub002/internal/adapters/secondary/postgres"
	"github.com/hellodits/dee-POS-sub002/internal/auth"
	"github.com/hellodits/dee-POS-sub002/internal/config"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
	"github.com/hellodits/dee-POS-sub002/internal/core/services"
	"github.com/hellodits/dee-POS-sub002/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting gateway",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Optional Database Pool for the staff directory and order lookups
	var (
		pool     *pgxpool.Pool
		dbHealth httpAdapter.HealthChecker
		resolver ports.BranchScopeResolver = services.ClaimsScopeResolver{}
		orders   ports.OrderLookup
	)
	if cfg.Database.URL != "" {
		pool, err = openPool(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("database connection established")

		if cfg.Database.AutoMigrate {
			if err := runMigrations(cfg.Database); err != nil {
				logger.Error("failed to run migrations", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}

		dbHealth = pool
		resolver = postgres.NewStaffDirectory(pool)
		orders = postgres.NewOrderRepository(pool)
	} else {
		logger.Warn("no database configured, trusting credential branch claims and skipping order existence checks")
	}

	// 4. Metrics
	var gatewayMetrics ports.GatewayMetrics = services.NoopMetrics{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		gatewayMetrics = prom
		metricsHandler = prom.Handler()
	}

	// 5. Core Services (Wiring the Hexagon)
	rooms := services.NewRoomDirectory()
	registry := services.NewConnectionRegistry(rooms, gatewayMetrics, logger)
	dispatcher := services.NewEventDispatcher(rooms, registry, gatewayMetrics, logger)
	subscriptions := services.NewSubscriptionService(registry, orders, logger)

	// 6. Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	hub := websocket.NewHub(registry, subscriptions, websocket.Options{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingInterval,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBufferSize: cfg.WebSocket.SendBufferSize,
	}, logger)

	// 7. Rate Limiters
	proxies, err := mw.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	customerLimiterCfg := mw.CustomerHandshakeConfig()
	customerLimiterCfg.RequestsPerSecond = cfg.RateLimit.CustomerRPS
	customerLimiterCfg.BurstSize = cfg.RateLimit.CustomerBurst
	customerLimiterCfg.TrustedProxies = proxies
	customerRateLimiter := mw.NewRateLimiter(customerLimiterCfg)

	var generalRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalLimiterCfg := mw.DefaultRateLimiterConfig()
		generalLimiterCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		generalLimiterCfg.BurstSize = cfg.RateLimit.BurstSize
		generalLimiterCfg.TrustedProxies = proxies
		generalRateLimiter = mw.NewRateLimiter(generalLimiterCfg)
	}

	// 8. Setup Router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Logger:         logger,
		WebSocket:      httpAdapter.NewWebSocketHandler(hub, tokenManager, resolver, customerRateLimiter, cfg, logger),
		Events:         httpAdapter.NewEventsHandler(dispatcher, logger),
		Health:         httpAdapter.NewHealthHandler(dbHealth, httpAdapter.NewGatewayStats(registry, rooms), cfg.App.Version),
		Metrics:        metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		IngressKeyHash: cfg.Ingress.KeyHash,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		RateLimiter:    generalRateLimiter,
	})

	// 9. Optional AMQP ingress
	consumerDone := make(chan struct{})
	if cfg.AMQP.Enabled {
		rmq, err := messaging.NewRabbitMQ(cfg.AMQP.URL)
		if err != nil {
			logger.Error("failed to connect to broker", "error", err)
			os.Exit(1)
		}
		defer rmq.Close()

		consumer := messaging.NewConsumer(rmq.Channel, dispatcher, messaging.ConsumerConfig{
			Exchange:      cfg.AMQP.Exchange,
			Queue:         cfg.AMQP.Queue,
			PrefetchCount: cfg.AMQP.PrefetchCount,
		}, logger)
		if err := consumer.Setup(); err != nil {
			logger.Error("failed to declare broker topology", "error", err)
			os.Exit(1)
		}

		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil {
				logger.Error("amqp consumer stopped", "error", err)
				stop()
			}
		}()
	} else {
		close(consumerDone)
	}

	// 10. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown, so the hub
	// closes them once new connections stop arriving.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	<-consumerDone
	hub.Shutdown()

	logger.Info("gateway shutdown complete", "open_connections", registry.Count())
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func runMigrations(cfg config.DatabaseConfig) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.URL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
