package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalislabs/vitalis/internal/adapters/http/api"
	"github.com/vitalislabs/vitalis/internal/adapters/repository"
	app "github.com/vitalislabs/vitalis/internal/app"
	"github.com/vitalislabs/vitalis/internal/config"
	"github.com/vitalislabs/vitalis/internal/domain/publish"
	"github.com/vitalislabs/vitalis/internal/domain/velocity"
	"github.com/vitalislabs/vitalis/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.Format(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.Error(err))
		return
	}

	gate := publish.New(
		publish.WithCutoffHour(cfg.PublishCutoffHourUTC),
		publish.WithShock(cfg.ShockThreshold, cfg.MaxShockStep),
		publish.WithAlphas(cfg.AlphaHigh, cfg.AlphaMedium, cfg.AlphaLow),
		publish.WithBucket(cfg.BucketSizeDays, cfg.HysteresisMarginDays),
		publish.WithMinCompleteness(cfg.MinPublishCompleteness),
	)

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithGate(gate),
		app.WithVelocityOptions(velocity.WithBounds(cfg.VelocityLowerBound, cfg.VelocityUpperBound)),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithPipelineVersion(cfg.PipelineVersion),
		app.WithWearableWindow(cfg.WearableWindowDays),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc, api.WithRefreshPerMinute(cfg.RefreshPerMinute))
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// buildStore selects SQLite when a path is configured, in-memory otherwise.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.SQLitePath == "" {
		return repository.NewMemStore(), nil
	}
	return repository.NewSQLiteStore(ctx, cfg.SQLitePath)
}
