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

	"github.com/spf13/pflag"

	"showroom-popup-builder/internal/app"
	"showroom-popup-builder/internal/config"
	"showroom-popup-builder/internal/dispatch"
	"showroom-popup-builder/internal/events"
	"showroom-popup-builder/internal/metrics"
	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/popups"
)

// sceneApplication serves the viewer: popup scripts and the click API.
type sceneApplication struct {
	cfg        *config.Config
	logger     *slog.Logger
	table      dispatch.Table
	dispatcher *dispatch.Dispatcher
	popups     *popups.Service
	oracle     dispatch.Oracle
	limiter    *clickLimiter
	metrics    *metrics.Metrics
}

func main() {
	configPath := pflag.StringP("config", "c", "", "config file (default ./config.yaml)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stdout).With("service", "scene")

	if err := run(cfg, logger); err != nil {
		logger.Error("Scene server failed", "error", err)
		os.Exit(1)
	}
}

// newOracle asks the platform when an API is configured. Without one,
// development setups grant every right and production grants none.
func newOracle(cfg *config.Config) dispatch.Oracle {
	if cfg.API.BaseURL != "" {
		return dispatch.NewHTTPOracle(cfg.API.BaseURL, cfg.Popups.Space, &http.Client{Timeout: cfg.API.Timeout})
	}
	if cfg.IsProduction() {
		return &dispatch.StaticOracle{}
	}
	return &dispatch.StaticOracle{Default: model.Access{CanEdit: true, CanUpload: true}}
}

func newSceneApplication(cfg *config.Config, logger *slog.Logger, deps *app.Deps, table dispatch.Table) *sceneApplication {
	m := metrics.New()
	return &sceneApplication{
		cfg:    cfg,
		logger: logger,
		table:  table,
		dispatcher: dispatch.New(dispatch.Options{
			Table:    table,
			Popups:   deps.Popups,
			Space:    cfg.Popups.Space,
			Observer: m,
			Logger:   logger,
		}),
		popups:  deps.Popups,
		oracle:  newOracle(cfg),
		limiter: newClickLimiter(cfg.Server.ClickRate, cfg.Server.ClickBurst),
		metrics: m,
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	table, err := dispatch.LoadTable(cfg.Objects.Path)
	if err != nil {
		return fmt.Errorf("failed to load object actions: %w", err)
	}
	logger.Info("Object actions loaded", "path", cfg.Objects.Path, "objects", len(table))

	sub, err := events.OpenSubscriber(app.EventOptions(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to open event subscriber: %w", err)
	}
	defer sub.Close()
	if err := sub.Subscribe(ctx, func(e events.SavedEvent) {
		logger.Info("Popup saved elsewhere, dropping loaded copy", "space", e.SpaceSlug, "object", e.ObjectName)
		deps.Popups.Forget(ctx, e.Target())
	}); err != nil {
		return fmt.Errorf("failed to subscribe to saved events: %w", err)
	}

	application := newSceneApplication(cfg, logger, deps, table)
	if err := application.limiter.Start(limiterSweepSchedule); err != nil {
		return err
	}
	defer application.limiter.Stop()
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           application.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting scene server", "address", srv.Addr, "space", cfg.Popups.Space)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down scene server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Scene server exited")
	return nil
}
