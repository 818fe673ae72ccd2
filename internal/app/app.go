package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/flightkml/internal/managers"
	"github.com/chrissnell/flightkml/internal/observability"
	"github.com/chrissnell/flightkml/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance. cfg must already have defaults
// applied and been validated.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	traceSettings, err := observability.TraceSettingsFromConfig(a.config.Tracing)
	if err != nil {
		return err
	}
	tracing, err := observability.StartTracing(ctx, traceSettings, a.logger)
	if err != nil {
		return fmt.Errorf("error initializing tracing: %w", err)
	}
	defer tracing.Stop(context.Background())

	metrics, err := observability.NewFeedCollector(nil)
	if err != nil {
		return fmt.Errorf("error registering metrics: %w", err)
	}

	// Fetchers hold oauth2 token sources bound to ctx.
	pipeline, err := managers.NewPipeline(ctx, a.config, metrics, a.logger)
	if err != nil {
		return err
	}
	for _, f := range pipeline.Feeds() {
		a.logger.Infof("serving feed %s from provider %s (%s)", f.Name, f.Fetcher.Name(), f.Fetcher.Schema())
	}

	cm, err := managers.NewControllerManager(ctx, &wg, a.config, pipeline, metrics, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	a.logger.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
