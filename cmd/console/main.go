// Package main is the entry point for the Sukani console server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/config"
	"github.com/sukanihq/sukani/internal/engine"
	"github.com/sukanihq/sukani/internal/observability"
	"github.com/sukanihq/sukani/internal/session"
	"github.com/sukanihq/sukani/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "sukani-console", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Connect the engine gateway.
	engineClient := engine.NewClient(cfg.Engine.BaseURL, cfg.Engine.Timeout, logger)
	engineClient.SetMetrics(metrics)

	// Step 5: Initialize draft persistence.
	draftStore, draftCloser, err := buildDraftStore(ctx, cfg.Sessions.Drafts, logger)
	if err != nil {
		logger.Error("draft store initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Initialize the commit idempotency store.
	commitStore, commitCloser, err := buildCommitStore(cfg.Idempotency, logger)
	if err != nil {
		logger.Error("commit store initialization failed", zap.Error(err))
		return 1
	}

	// Step 7: Build the session manager and its autosaver.
	autosaver := session.NewAutosaver(draftStore, cfg.Sessions.AutosaveDelay, logger)
	autosaver.SetMetrics(metrics)
	manager := session.NewManager(engineClient, draftStore, commitStore, autosaver, cfg.Sessions.IdleTTL, logger)
	manager.SetMetrics(metrics)

	// Step 8: Build readiness checks. Memory-backed stores have no health
	// check and stay out of the readiness report.
	readinessChecks := observability.ReadinessChecks{
		Engine: engineClient,
	}
	if hc, ok := draftStore.(observability.HealthChecker); ok {
		readinessChecks.DraftStore = hc
	}
	if hc, ok := commitStore.(observability.HealthChecker); ok {
		readinessChecks.CommitStore = hc
	}

	// Step 9: Build HTTP router.
	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)

	var metricsHandler http.Handler
	if cfg.Observability.Metrics.Enabled {
		metricsHandler = observability.Handler()
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Authenticate:   transport.JWTAuthenticator(cfg.Identity, jwks),
		Sessions:       manager,
		HealthHandler:  observability.HandleHealth(),
		ReadyHandler:   observability.HandleReady(readinessChecks),
		MetricsHandler: metricsHandler,
	})

	// Wrap router with metrics and tracing middleware.
	handler := metrics.MetricsMiddleware(observability.TracingMiddleware(router))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	go manager.Run(bgCtx)

	// Step 11: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("engine_url", cfg.Engine.BaseURL),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks.
	bgCancel()

	// Close stores.
	if draftCloser != nil {
		draftCloser()
	}
	if commitCloser != nil {
		commitCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildDraftStore creates the draft store based on config.
func buildDraftStore(ctx context.Context, cfg config.DraftStoreConfig, logger *zap.Logger) (session.DraftStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory draft store")
		return session.NewMemoryDraftStore(), nil, nil
	case "postgres", "":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" && cfg.DSNEnv != "" {
			return nil, nil, fmt.Errorf("draft store: %s environment variable not set", cfg.DSNEnv)
		}
		if dsn == "" {
			logger.Warn("draft store DSN not configured, using in-memory store")
			return session.NewMemoryDraftStore(), nil, nil
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("draft store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("draft store: connect: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("draft store: ping: %w", err)
		}

		return session.NewPgDraftStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported draft store driver: %q", cfg.Driver)
	}
}

// buildCommitStore creates the idempotency store based on config.
func buildCommitStore(cfg config.IdempotencyConfig, logger *zap.Logger) (session.CommitStore, func(), error) {
	if !cfg.Enabled {
		logger.Info("commit idempotency persistence disabled, using in-memory store")
		return session.NewMemoryCommitStore(), nil, nil
	}

	switch cfg.Store.Driver {
	case "memory", "":
		logger.Info("using in-memory commit store")
		return session.NewMemoryCommitStore(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.Store.AddrEnv)
		if addr == "" && cfg.Store.AddrEnv != "" {
			return nil, nil, fmt.Errorf("commit store: %s environment variable not set", cfg.Store.AddrEnv)
		}
		if addr == "" {
			logger.Warn("commit store address not configured, using in-memory store")
			return session.NewMemoryCommitStore(), nil, nil
		}

		client := redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   cfg.Store.DB,
		})
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Error("redis close error", zap.Error(err))
			}
		}
		return session.NewRedisCommitStore(client), closer, nil
	default:
		return nil, nil, fmt.Errorf("unsupported commit store driver: %q", cfg.Store.Driver)
	}
}
