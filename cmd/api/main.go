package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/pingkeeper/internal/config"
	"github.com/hamed0406/pingkeeper/internal/httpapi"
	"github.com/hamed0406/pingkeeper/internal/logging"
	"github.com/hamed0406/pingkeeper/internal/metrics"
	"github.com/hamed0406/pingkeeper/internal/probe"
	"github.com/hamed0406/pingkeeper/internal/registry"
	"github.com/hamed0406/pingkeeper/internal/repo"
	"github.com/hamed0406/pingkeeper/internal/repo/memory"
	"github.com/hamed0406/pingkeeper/internal/repo/postgres"
	"github.com/hamed0406/pingkeeper/internal/repo/sqlite"
	"github.com/hamed0406/pingkeeper/internal/scheduler"
	"github.com/hamed0406/pingkeeper/internal/stats"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, cfg.LogStdout)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	m := metrics.New()
	var checker probe.Checker = probe.NewHTTPChecker(cfg.CheckTimeout)
	if cfg.RetryAttempts > 1 {
		checker = &probe.RetryChecker{Inner: checker, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	}
	resolver := scheduler.NewRedirectResolver(logger, store, store, m)
	prober := scheduler.NewProber(logger, store, store, checker, resolver, m, cfg.CheckTimeout, cfg.MaxConcurrentChecks)
	prober.DNSDiagnostics = cfg.DNSDiagnostics

	sched := scheduler.New(logger, prober, cfg.CheckInterval, cfg.RunOnStart)
	sched.Start(ctx)
	defer sched.Stop()

	api := httpapi.NewServer(logger, store, store, prober,
		stats.NewService(store, store), registry.NewService(logger, store), m)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.Router(cfg.AllowedOrigins, cfg.PingRPM, cfg.PingBurst),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.Duration("interval", cfg.CheckInterval),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("api_shutdown", zap.Duration("grace", cfg.ShutdownGrace))
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	case config.DriverMemory:
		logger.Warn("store_memory", zap.String("note", "history is lost on restart"))
		return memory.New(), nil
	default:
		return sqlite.New(ctx, cfg.DatabaseURL, logger)
	}
}
