// Command authcore runs the credential and session HTTP service.
//
// Configuration comes from the environment, optionally seeded from a .env
// file: AUTHCORE_* for the Service, plus DATABASE_URL, REDIS_URL,
// STORE_DRIVER, SESSION_STORE, HTTP_ADDR, LOG_LEVEL, LOG_FORMAT,
// KAFKA_BROKERS, KAFKA_TOPIC, TRUST_PROXY, COOKIE_SECURE and
// SHUTDOWN_TIMEOUT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	gormpostgres "gorm.io/driver/postgres"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/auditkafka"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/store/gormstore"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/MrEthical07/authcore/user"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authcore:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := loadServerConfig(os.LookupEnv, authcore.LoadConfigFromEnv)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, sessions, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	builder := authcore.New().
		WithConfig(cfg.Auth).
		WithUserStore(users).
		WithLogger(logger)
	if sessions != nil {
		builder = builder.WithSessionStore(sessions)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		builder = builder.WithRedis(rdb)
	}

	sink, closeSink, err := auditSink(cfg, logger)
	if err != nil {
		return err
	}
	builder = builder.WithAuditSink(sink)

	svc, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	// Drain queued audit events before the Kafka writer closes.
	defer closeSink()
	defer svc.Close()

	registry := promclient.NewRegistry()
	registry.MustRegister(
		prometheus.NewPrometheusExporter(svc),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// With Redis every replica shares one budget per IP.
	var limiter httpapi.Limiter
	if rdb != nil {
		limiter = httpapi.NewRedisRateLimiter(rdb, 10, time.Minute, logger)
	} else {
		local := httpapi.NewIPRateLimiter(httpapi.DefaultRateLimitConfig())
		defer local.Stop()
		limiter = local
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(svc, httpapi.Options{
			Logger:     logger,
			Limiter:    limiter,
			Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			TrustProxy: cfg.TrustProxy,
			Cookie: httpapi.CookieConfig{
				Secure: cfg.CookieSecure,
				MaxAge: cfg.Auth.Session.Horizon,
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go authcore.NewSweeper(svc).Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// openStores returns the user store and, when sessions live in SQL, the
// session store. A nil session store means the Redis store is used.
func openStores(ctx context.Context, cfg serverConfig, logger *slog.Logger) (user.Store, session.Store, func(), error) {
	switch cfg.StoreDriver {
	case "gorm":
		db, err := gormstore.Open(gormpostgres.Open(cfg.DatabaseURL))
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		var sessions session.Store
		if cfg.SessionStore == "sql" {
			sessions = gormstore.NewSessionStore(db)
		}
		logger.Info("stores ready", slog.String("driver", "gorm"), slog.String("sessions", cfg.SessionStore))
		return gormstore.NewUserStore(db, nil), sessions, closeFn, nil

	default:
		pool, err := newPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		var sessions session.Store
		if cfg.SessionStore == "sql" {
			sessions = postgres.NewSessionStore(pool)
		}
		logger.Info("stores ready", slog.String("driver", "pgx"), slog.String("sessions", cfg.SessionStore))
		return postgres.NewUserStore(pool, nil), sessions, pool.Close, nil
	}
}

func newPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// auditSink logs every event and, with KAFKA_BROKERS set, also publishes
// to Kafka through an async buffer.
func auditSink(cfg serverConfig, logger *slog.Logger) (authcore.AuditSink, func(), error) {
	slogSink := authcore.NewSlogSink(logger)
	if len(cfg.KafkaBrokers) == 0 {
		return slogSink, func() {}, nil
	}

	ks, err := auditkafka.New(auditkafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
	if err != nil {
		return nil, nil, err
	}
	async := authcore.NewAsyncAuditSink(authcore.AuditConfig{
		Enabled:    true,
		Async:      true,
		BufferSize: cfg.Auth.Audit.BufferSize,
		DropIfFull: true,
	}, ks)

	closeFn := func() {
		async.Close()
		if err := ks.Close(); err != nil {
			logger.Warn("close kafka writer", slog.Any("error", err))
		}
	}
	return authcore.MultiSink{slogSink, async}, closeFn, nil
}
