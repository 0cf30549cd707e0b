// Package server initializes and runs the auth application: configuration,
// the credential store, the shared attempt-counter backend, the pepper
// store, and graceful shutdown. The HTTP surface of the surrounding blog
// application consumes the service facade exposed here; the only listener
// owned by this package is the prometheus metrics endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Omoju-Mayowa/blogauth/internal/logging"
	"github.com/Omoju-Mayowa/blogauth/internal/server/config"
	"github.com/Omoju-Mayowa/blogauth/internal/server/metrics"
	"github.com/Omoju-Mayowa/blogauth/internal/server/password"
	"github.com/Omoju-Mayowa/blogauth/internal/server/pepper"
	"github.com/Omoju-Mayowa/blogauth/internal/server/ratelimit"
	"github.com/Omoju-Mayowa/blogauth/internal/server/repositories/repomanager"
	"github.com/Omoju-Mayowa/blogauth/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	rdb         *redis.Client
	repomanager repomanager.RepositoryManager
	registry    *prometheus.Registry
	limiter     *ratelimit.Limiter
	authService *services.AuthService
}

// NewApp wires every component of the auth core from the resolved
// configuration. It fails fast on anything that would leave the service
// unable to verify credentials, most importantly a missing or corrupt
// pepper sequence.
func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("repository manager init error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	store, err := pepper.Open(cfg.PepperFile, pepper.Seed{Current: cfg.Pepper, Old: cfg.PepperFallbacks})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	mtr := metrics.New(registry)

	hasher := password.NewHasher(store)
	verifier := password.NewVerifier(store, mtr)

	limiter := ratelimit.New(rdb, ratelimit.Config{
		MaxAttempts:   cfg.LoginMaxAttempts,
		Window:        cfg.LoginWindow,
		BlockDuration: cfg.LoginBlockDuration,
		FailOpen:      cfg.RateLimitFailOpen,
	}, cfg.TrustedIPs, logger)

	authService, err := services.NewAuthService(db, m, store, hasher, verifier, limiter, mtr, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth service init error: %w", err)
	}

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		rdb:         rdb,
		repomanager: m,
		registry:    registry,
		limiter:     limiter,
		authService: authService,
	}, nil
}

// Auth exposes the service facade to the embedding application.
func (app *App) Auth() *services.AuthService {
	return app.authService
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startMetricsServer(ctx context.Context) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error(ctx, "metrics server error", "error", err)
		}
	}()

	return srv
}

// Run applies migrations, checks backend connectivity, serves metrics, and
// blocks until the context is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting auth server")

	app.initSignalHandler(cancelFunc)

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	// A counter-store outage at startup is not fatal: the limiter policy
	// decides per attempt. Log it so the operator sees degraded protection.
	if err := app.limiter.Ping(ctx); err != nil {
		app.logger.Warn(ctx, "counter store unreachable",
			"addr", app.config.RedisAddr, "fail_open", app.config.RateLimitFailOpen)
	}

	metricsSrv := app.startMetricsServer(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "metrics server shutdown error", "error", err)
		}
	}()

	wg.Wait()

	if err := app.rdb.Close(); err != nil {
		app.logger.Error(ctx, "redis close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "auth server stopped")
	return nil
}
