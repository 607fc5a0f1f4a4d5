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

	"github.com/justinas/nosurf"
	"github.com/spf13/pflag"

	"showroom-popup-builder/internal/app"
	"showroom-popup-builder/internal/catalog"
	"showroom-popup-builder/internal/config"
	"showroom-popup-builder/internal/editor"
	"showroom-popup-builder/internal/metrics"
	"showroom-popup-builder/internal/templates"
	"showroom-popup-builder/internal/templating"
)

// sessionCookie carries the editor session id of one admin browser.
const sessionCookie = "popup_editor"

// adminApplication holds the application-wide dependencies for the admin server.
type adminApplication struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *templating.Engine
	editors  *editor.Manager
	catalog  *catalog.Manager
	registry *templates.Registry
	metrics  *metrics.Metrics
}

// newTemplateData creates a map of data to pass to templates, including CSRF token and active nav item.
func (app *adminApplication) newTemplateData(r *http.Request, activeNav string) map[string]any {
	return map[string]any{
		"CSRFToken": nosurf.Token(r),
		"ActiveNav": activeNav,
	}
}

func main() {
	configPath := pflag.StringP("config", "c", "", "config file (default ./config.yaml)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stdout).With("service", "admin")

	if err := run(cfg, logger); err != nil {
		logger.Error("Admin server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	engine, err := templating.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create template cache: %w", err)
	}
	logger.Info("Admin UI templates cached successfully")

	m := metrics.New()
	editors := editor.NewManager(editor.Options{
		Registry:       deps.Registry,
		Gateway:        deps.Gateway,
		Reloader:       deps.Popups,
		Observer:       m,
		Logger:         logger,
		RequestTimeout: cfg.Editor.RequestTimeout,
	}, cfg.Editor.IdleTimeout)
	if err := editors.Start(cfg.Editor.SweepSchedule); err != nil {
		return fmt.Errorf("failed to schedule idle session sweep: %w", err)
	}
	defer editors.Stop()

	application := &adminApplication{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		editors:  editors,
		catalog:  deps.Catalog,
		registry: deps.Registry,
		metrics:  m,
	}

	srv := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           application.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting admin server", "address", srv.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("Shutting down admin server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Admin server exited")
	return nil
}
