package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitjobs/notifier/internal/api"
	"github.com/gitjobs/notifier/internal/config"
	"github.com/gitjobs/notifier/internal/db"
	"github.com/gitjobs/notifier/internal/mailer"
	"github.com/gitjobs/notifier/internal/metrics"
	"github.com/gitjobs/notifier/internal/ratelimiter"
	"github.com/gitjobs/notifier/internal/render"
	"github.com/gitjobs/notifier/internal/repository"
	"github.com/gitjobs/notifier/internal/service"
	"github.com/gitjobs/notifier/internal/worker"
)

func main() {
	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
	logger.Info("server stopped cleanly")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Cancelled on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- database ----
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	leases := db.NewLeaseRegistry(pool, cfg.LeaseMaxAge, logger.With(zap.String("component", "leases")))
	// Roll back anything still open once the workers are gone; pool.Close
	// waits for every acquired connection.
	defer func() {
		if n := leases.CloseAll(context.Background()); n > 0 {
			logger.Warn("rolled back leases left open at shutdown", zap.Int("count", n))
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, func() float64 { return float64(leases.Len()) })

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	sender, err := mailer.NewSMTPSender(cfg.Email)
	if err != nil {
		return fmt.Errorf("configure mailer: %w", err)
	}

	repo := repository.NewPgNotificationRepository(pool, leases)
	limiter := ratelimiter.New(cfg.SendRateLimit)
	svc := service.NewNotificationService(repo, leases, logger, m.EnqueueHook())

	// ---- worker pool and reaper ----
	onDelivered, onFailed := m.WorkerHooks()
	workers := worker.NewPool(cfg, repo, renderer, sender, limiter, logger, worker.MetricHooks{
		OnDelivered: onDelivered,
		OnFailed:    onFailed,
	})
	reaper := worker.NewReaper(leases, cfg.ReapInterval, logger.With(zap.String("component", "reaper")), m.ReapHook())

	// ---- HTTP server ----
	router := api.NewRouter(svc, reg, logger, api.RouterConfig{
		JWTSecret: cfg.APIJWTSecret,
		DB:        pool,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting notification workers", zap.Int("count", workers.Size()))
		workers.Start(gctx)
		workers.Wait()
		return nil
	})

	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})

	// ---- graceful shutdown ----
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		// Stop accepting new HTTP requests. Workers finish their current
		// lease on their own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
